package pubsub

import "testing"

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"cafe-proj", "cq-domain-events", "projects/cafe-proj/topics/cq-domain-events"},
		{"cafe-proj", " cq-domain-events ", "projects/cafe-proj/topics/cq-domain-events"},
		{"cafe-proj", "projects/other/topics/events", "projects/other/topics/events"},
		{"cafe-proj", "", ""},
		{"", "events", ""},
	}
	for _, tc := range cases {
		if got := resourceName(tc.project, "topics", tc.name); got != tc.want {
			t.Fatalf("resourceName(%q, %q)=%q want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("topic") != nil {
		t.Fatal("nil client should return nil publisher")
	}
	if err := c.Ping(t.Context()); err == nil {
		t.Fatal("nil client ping should fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
