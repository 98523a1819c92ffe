package feed

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"

	"railwatch/pkg/models"
)

const testFeedURL = "http://feeds.railwatch.test"

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>CPTM</title>
	<link>http://feeds.railwatch.test</link>
	<description>Status da operação</description>
	<item>
		<title>Linha 9 paralisada</title>
		<link>http://feeds.railwatch.test/posts/1</link>
		<description>&lt;p&gt;Trens &lt;b&gt;atrasados&lt;/b&gt;
		hoje&lt;/p&gt;</description>
		<pubDate>Mon, 03 Feb 2025 07:45:00 +0000</pubDate>
	</item>
	<item>
		<title></title>
		<description></description>
	</item>
</channel>
</rss>`

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func TestParser_Run(t *testing.T) {
	defer gock.Off()

	gock.New(testFeedURL).
		Get("/cptm.xml").
		Reply(http.StatusOK).
		SetHeader("Content-Type", "application/rss+xml").
		BodyString(testRSS)
	gock.New(testFeedURL).
		Get("/broken.xml").
		Reply(http.StatusInternalServerError)

	good := testFeedURL + "/cptm.xml"
	broken := testFeedURL + "/broken.xml"
	parser := NewParser(Config{Sources: []string{good, broken}, Timeout: 2})

	ch := make(chan Msg, 2)
	parser.Run(ch)
	close(ch)

	msgs := make(map[string]Msg)
	for msg := range ch {
		msgs[msg.Source] = msg
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}

	if err := msgs[broken].Err; err == nil {
		t.Error("want error for broken source, got nil")
	}

	msg := msgs[good]
	if msg.Err != nil {
		t.Fatalf("unexpected error: %v", msg.Err)
	}
	if len(msg.Posts) != 1 {
		t.Fatalf("want 1 post, got %d: %+v", len(msg.Posts), msg.Posts)
	}

	post := msg.Posts[0]
	wantText := "Linha 9 paralisada Trens atrasados hoje"
	if post.Text != wantText {
		t.Errorf("want text %q, got %q", wantText, post.Text)
	}
	if post.Link != testFeedURL+"/posts/1" {
		t.Errorf("want link %s/posts/1, got %s", testFeedURL, post.Link)
	}
	if post.Source != good {
		t.Errorf("want source %s, got %s", good, post.Source)
	}
	wantPublished := time.Date(2025, 2, 3, 7, 45, 0, 0, time.UTC)
	if !post.Published.Equal(wantPublished) {
		t.Errorf("want published %v, got %v", wantPublished, post.Published)
	}
	if post.ID != models.AnalysisID(good, wantText) {
		t.Errorf("want derived post ID, got %v", post.ID)
	}
}

func TestNewParserDefaults(t *testing.T) {
	p := NewParser(Config{})
	if p.Delay != defaultRequestPeriod {
		t.Errorf("want delay %v, got %v", defaultRequestPeriod, p.Delay)
	}
	if p.timeout != defaultTimeout {
		t.Errorf("want timeout %v, got %v", defaultTimeout, p.timeout)
	}

	p = NewParser(Config{RequestPeriod: 2})
	if p.Delay != 2*time.Minute {
		t.Errorf("want delay 2m, got %v", p.Delay)
	}
}

func TestItemToPost(t *testing.T) {
	tests := []struct {
		name     string
		item     *gofeed.Item
		wantText string
		wantAuth string
	}{
		{
			name:     "plain description",
			item:     &gofeed.Item{Title: "Trem lotado", Description: "  na   estação Luz "},
			wantText: "Trem lotado na estação Luz",
		},
		{
			name:     "html entities",
			item:     &gofeed.Item{Title: "Aviso", Description: "<div>Obras &amp; manutenção</div>"},
			wantText: "Aviso Obras & manutenção",
		},
		{
			name:     "author",
			item:     &gofeed.Item{Title: "pane", Author: &gofeed.Person{Name: "ana"}},
			wantText: "pane",
			wantAuth: "ana",
		},
		{
			name: "empty item",
			item: &gofeed.Item{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ItemToPost("src", tt.item)
			if got.Text != tt.wantText {
				t.Errorf("want text %q, got %q", tt.wantText, got.Text)
			}
			if got.Author != tt.wantAuth {
				t.Errorf("want author %q, got %q", tt.wantAuth, got.Author)
			}
			if got.Published != (time.Time{}) {
				t.Errorf("want zero published time, got %v", got.Published)
			}
		})
	}
}
