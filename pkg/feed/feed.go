// Package feed polls RSS and Atom sources and turns their items into posts.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"

	"railwatch/pkg/models"
)

const (
	defaultRequestPeriod = 5 * time.Minute
	defaultTimeout       = 10 * time.Second
)

type Config struct {
	Sources []string `toml:"sources"`
	// RequestPeriod is the polling interval in minutes.
	RequestPeriod int `toml:"requestPeriod"`
	// Timeout is the per-source fetch timeout in seconds.
	Timeout int `toml:"timeout"`
}

// Msg carries the result of fetching one source.
type Msg struct {
	Source string
	Posts  []models.Post
	Err    error
}

type Parser struct {
	Delay time.Duration

	sources []string
	timeout time.Duration
}

func NewParser(conf Config) *Parser {
	p := Parser{
		Delay:   time.Duration(conf.RequestPeriod) * time.Minute,
		sources: append([]string(nil), conf.Sources...),
		timeout: time.Duration(conf.Timeout) * time.Second,
	}
	if p.Delay <= 0 {
		p.Delay = defaultRequestPeriod
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}

	return &p
}

// Run fetches every source concurrently and sends one Msg per source to ch.
// It returns once all messages have been sent.
func (p *Parser) Run(ch chan<- Msg) {
	var wg sync.WaitGroup
	for _, src := range p.sources {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()

			posts, err := p.fetch(src)
			if err != nil {
				log.Debugf("[feed] %s: %v", src, err)
			}
			ch <- Msg{Source: src, Posts: posts, Err: err}
		}(src)
	}
	wg.Wait()
}

func (p *Parser) fetch(src string) ([]models.Post, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	// gofeed parsers keep state between calls
	fp := gofeed.NewParser()
	f, err := fp.ParseURLWithContext(src, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	posts := make([]models.Post, 0, len(f.Items))
	for _, item := range f.Items {
		post := ItemToPost(src, item)
		if post.Text == "" {
			continue
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// ItemToPost converts a feed item into a post. The text is the item title
// followed by its description with HTML markup removed.
func ItemToPost(src string, item *gofeed.Item) models.Post {
	text := strings.TrimSpace(item.Title + " " + stripHTML(item.Description))

	post := models.Post{
		Text:   text,
		Source: src,
		Link:   item.Link,
	}
	if item.Author != nil {
		post.Author = item.Author.Name
	}
	if item.PublishedParsed != nil {
		post.Published = item.PublishedParsed.UTC()
	}
	if text != "" {
		post.ID = models.AnalysisID(src, text)
	}

	return post
}

func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
