package source

import (
	"strings"
	"testing"
)

func TestIsBlockedResponse_HardStatuses(t *testing.T) {
	for _, status := range []int{401, 403, 429, 451} {
		blocked, reason := IsBlockedResponse(status, "<html>anything</html>", "plenty of extracted text that would otherwise look fine")
		if !blocked {
			t.Errorf("Expected status %d to be blocked", status)
		}
		if reason != "http status" {
			t.Errorf("Expected status reason, got %q", reason)
		}
	}

	for _, status := range []int{200, 301, 404, 500} {
		longText := strings.Repeat("the subject died peacefully at home. ", 10)
		if blocked, _ := IsBlockedResponse(status, "<html><p>"+longText+"</p></html>", longText); blocked {
			t.Errorf("Expected status %d with real content not to be blocked", status)
		}
	}
}

func TestIsBlockedResponse_ChallengePhrase(t *testing.T) {
	body := "<html><body>Please verify you are a human to continue.</body></html>"
	blocked, reason := IsBlockedResponse(200, body, "Please verify you are a human to continue plus some padding text here")
	if !blocked {
		t.Fatal("Expected short challenge page to be blocked")
	}
	if !strings.HasPrefix(reason, "challenge phrase") {
		t.Errorf("Expected challenge reason, got %q", reason)
	}
}

func TestIsBlockedResponse_ChallengePhraseInLargeBody(t *testing.T) {
	// A long article that merely quotes the word "captcha" is real
	// content, not an interstitial.
	body := "<html><body>" + strings.Repeat("A long obituary discussing captcha technology history. ", 200) + "</body></html>"
	text := strings.Repeat("A long obituary discussing captcha technology history. ", 200)
	if blocked, _ := IsBlockedResponse(200, body, text); blocked {
		t.Error("Expected large body with incidental phrase not to be blocked")
	}
}

func TestIsBlockedResponse_ScriptOnlyPage(t *testing.T) {
	body := "<html><head><script>window.location='/challenge'</script></head><body></body></html>"
	blocked, reason := IsBlockedResponse(200, body, "  ")
	if !blocked {
		t.Fatal("Expected near-empty script page to be blocked")
	}
	if reason != "script-only page" {
		t.Errorf("Expected script-only reason, got %q", reason)
	}
}

func TestIsBlockedResponse_EmptyTextWithoutScript(t *testing.T) {
	if blocked, _ := IsBlockedResponse(200, "<html><body></body></html>", ""); blocked {
		t.Error("Expected empty static page not to be blocked")
	}
}
