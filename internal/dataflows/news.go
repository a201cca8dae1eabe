package dataflows

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/models"
)

// NewsScraper pulls recent headlines from Google News. The advisory workflow
// offers them to the decision process as optional context; scrape failures
// degrade to an empty list.
type NewsScraper struct {
	client *resty.Client
	cache  *CacheManager
}

func NewNewsScraper(cfg *config.Config) *NewsScraper {
	cacheDir := filepath.Join(cfg.DataCacheDir, "news")
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; easyfolio/1.0)")

	return &NewsScraper{
		client: client,
		cache:  NewCacheManager(cacheDir, 2*time.Hour, cfg.CacheEnabled),
	}
}

// Headlines searches Google News for the query and returns up to maxResults
// headlines.
func (ns *NewsScraper) Headlines(ctx context.Context, query string, maxResults int) ([]models.NewsHeadline, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	cacheParams := map[string]interface{}{"query": query, "max": maxResults}
	var cached []models.NewsHeadline
	if ns.cache.Get("google_news", "headlines", cacheParams, &cached) {
		return cached, nil
	}

	searchURL := fmt.Sprintf("https://news.google.com/search?q=%s&hl=en&gl=US&ceid=US:en",
		url.QueryEscape(query))

	resp, err := ns.client.R().SetContext(ctx).Get(searchURL)
	if err != nil {
		return nil, fmt.Errorf("fetch news for %q: %w", query, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch news for %q: HTTP %d", query, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("parse news html: %w", err)
	}

	headlines := parseHeadlines(doc, maxResults)
	ns.cache.Set("google_news", "headlines", cacheParams, headlines)
	return headlines, nil
}

func parseHeadlines(doc *goquery.Document, maxResults int) []models.NewsHeadline {
	var headlines []models.NewsHeadline

	doc.Find("article").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find("h3").Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h4").Text())
		}
		if title == "" {
			title = strings.TrimSpace(s.Find("a").First().Text())
		}
		if title == "" {
			return true
		}

		href, _ := s.Find("a").First().Attr("href")
		source := strings.TrimSpace(s.Find("div[data-n-tid]").Text())
		if source == "" {
			source = "Google News"
		}

		headlines = append(headlines, models.NewsHeadline{
			Title:  title,
			Source: source,
			URL:    absoluteNewsURL(href),
		})
		return len(headlines) < maxResults
	})

	return headlines
}

// absoluteNewsURL resolves Google News relative article links.
func absoluteNewsURL(href string) string {
	if strings.HasPrefix(href, "./") {
		return "https://news.google.com" + href[1:]
	}
	if strings.HasPrefix(href, "/") {
		return "https://news.google.com" + href
	}
	return href
}
