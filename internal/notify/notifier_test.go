package notify

import (
	"testing"

	"github.com/you/pulpit/internal/domain"
)

func TestChannelFor(t *testing.T) {
	if got := channelFor("user-42"); got != "notify:user-42" {
		t.Errorf("channelFor = %q", got)
	}
}

func TestResultMessage(t *testing.T) {
	got := ResultMessage(domain.Sent, []string{"facebook", "whatsapp"})
	if got != "Your post published to facebook, whatsapp" {
		t.Errorf("sent message = %q", got)
	}

	got = ResultMessage(domain.Failed, []string{"facebook"})
	if got != "Your post failed to publish to facebook" {
		t.Errorf("failed message = %q", got)
	}
}
