package sanitize

import "testing"

func TestStripHTMLRemovesEncodedTags(t *testing.T) {
	got := StripHTML("  call back &lt;script&gt;alert(1)&lt;/script&gt; <b>tomorrow</b> ")
	if got != "call back alert(1) tomorrow" {
		t.Fatalf("unexpected sanitized text %q", got)
	}
}

func TestTextPtrNil(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}

func TestTextCollapsesSpacesButKeepsLines(t *testing.T) {
	got := Text("called <i>twice</i>   no answer\nretry  friday")
	if got != "called twice no answer\nretry friday" {
		t.Fatalf("unexpected sanitized text %q", got)
	}
}
