package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseNotificationFilter(t *testing.T) {
	tests := []struct {
		key    string
		want   NotificationFilter
		wantOK bool
	}{
		{"", NotificationFilter{}, true},
		{"all", NotificationFilter{}, true},
		{"unread", NotificationFilter{UnreadOnly: true}, true},
		{"likes", NotificationFilter{Category: NotificationLike}, true},
		{"replies", NotificationFilter{Category: NotificationReply}, true},
		{"follows", NotificationFilter{Category: NotificationFollow}, true},
		{"mentions", NotificationFilter{Category: NotificationMention}, true},
		{"starred", NotificationFilter{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := ParseNotificationFilter(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("filter = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNotificationFilterKeys_AllParse(t *testing.T) {
	for _, key := range NotificationFilterKeys() {
		if _, ok := ParseNotificationFilter(key); !ok {
			t.Errorf("filter key %q should be parseable", key)
		}
	}
}

func TestVisibility_Valid(t *testing.T) {
	if !VisibilityEveryone.Valid() || !VisibilityOnlyMe.Valid() {
		t.Error("predefined visibilities should be valid")
	}
	if Visibility("friends").Valid() {
		t.Error("unknown visibility should be invalid")
	}
}

func TestValidCommunity(t *testing.T) {
	if !ValidCommunity("Ramen lovers") {
		t.Error("Ramen lovers should be a valid community")
	}
	if ValidCommunity("ramen lovers") {
		t.Error("community match should be case sensitive")
	}
	if Communities[0] != DefaultCommunity {
		t.Errorf("first community = %q, want %q", Communities[0], DefaultCommunity)
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Error("session expiring in the future should not be expired")
	}
	if !s.Expired(now.Add(time.Minute)) {
		t.Error("session should be expired at its expiry time")
	}
}

func TestAPIError_ErrorsAs(t *testing.T) {
	var err error = NewInvalidFilterError("x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("expected errors.As to match *APIError")
	}
	if apiErr.Code != ErrCodeInvalidFilter {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeInvalidFilter)
	}
	if apiErr.Error() == "" {
		t.Error("Error() should not be empty")
	}
}

func TestValidPostContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"whitespace only", "  \n\t ", false},
		{"single char", "a", true},
		{"exact limit", strings.Repeat("あ", MaxPostContentLength), true},
		{"over limit", strings.Repeat("あ", MaxPostContentLength+1), false},
		{"limit with surrounding spaces", "  " + strings.Repeat("x", MaxPostContentLength) + "  ", true},
		{"control chars only", "\x00\x1b\u007f", false},
		{"empty paragraph markup is text", "<p></p>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPostContent(tt.content); got != tt.want {
				t.Errorf("ValidPostContent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizePostContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "今日のラーメン最高", "今日のラーメン最高"},
		{"less-than without space", "a<b", "a<b"},
		{"comparison", "x < y", "x < y"},
		{"markup is kept as typed", "<b>bold</b>", "<b>bold</b>"},
		{"entities are not decoded", "&lt;b&gt; &amp;", "&lt;b&gt; &amp;"},
		{"crlf to lf", "line1\r\nline2\rline3", "line1\nline2\nline3"},
		{"control chars removed", "a\x00b\x1b[31mc\u007f", "ab[31mc"},
		{"tab kept", "a\tb", "a\tb"},
		{"surrounding space trimmed", "  hi \n", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePostContent(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePostContent(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizePostContent(got); again != got {
				t.Errorf("NormalizePostContent is not stable: %q -> %q", got, again)
			}
		})
	}
}
