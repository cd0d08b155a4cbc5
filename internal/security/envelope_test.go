package security

import "testing"

func TestWrapUnwrapExternalContent_RoundTrip(t *testing.T) {
	wrapped := WrapExternalContent("web_search", "the capital of France is Paris")
	body, source, ok := UnwrapExternalContent(wrapped)
	if !ok {
		t.Fatal("expected wrapped=true")
	}
	if source != "web_search" {
		t.Fatalf("unexpected source: %q", source)
	}
	if body != "the capital of France is Paris" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestUnwrapExternalContent_NotWrapped(t *testing.T) {
	body, source, ok := UnwrapExternalContent("plain text")
	if ok {
		t.Fatal("expected wrapped=false")
	}
	if source != "" || body != "plain text" {
		t.Fatalf("unexpected result: body=%q source=%q", body, source)
	}
}

func TestTrustPolicyParagraph_NonEmpty(t *testing.T) {
	if TrustPolicyParagraph() == "" {
		t.Fatal("expected non-empty trust policy paragraph")
	}
}
