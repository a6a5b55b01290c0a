package dataflows

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// NewsScraperClient handles news scraping operations
type NewsScraperClient struct {
	client *resty.Client
	cache  *CacheManager
}

// NewNewsScraperClient creates a new news scraper client
func NewNewsScraperClient(config *Config) *NewsScraperClient {
	cacheDir := filepath.Join(config.DataCacheDir, "news_scraper")
	cache := NewCacheManager(cacheDir, 2*time.Hour, config.CacheEnabled) // 2 hour cache for news

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; tradecycle/1.0)")

	return &NewsScraperClient{
		client: client,
		cache:  cache,
	}
}

// GoogleNewsParams represents parameters for Google News search
type GoogleNewsParams struct {
	Query      string    `json:"query"`
	Language   string    `json:"language"`
	Country    string    `json:"country"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	MaxResults int       `json:"max_results"`
}

// GetGoogleNews scrapes Google News for articles
func (ns *NewsScraperClient) GetGoogleNews(params GoogleNewsParams, config *Config) ([]*NewsArticle, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	if params.Language == "" {
		params.Language = "en"
	}
	if params.Country == "" {
		params.Country = "US"
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 20
	}

	var cached []*NewsArticle
	if ns.cache.Get("google_news", "search", params, &cached) {
		return cached, nil
	}

	googleURL := ns.buildGoogleNewsURL(params)

	var result []*NewsArticle
	err := WithRetry(DefaultRetryConfig(), func() error {
		resp, err := ns.client.R().Get(googleURL)
		if err != nil {
			return fmt.Errorf("failed to fetch Google News: %w", err)
		}

		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP error %d when fetching Google News", resp.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return fmt.Errorf("failed to parse HTML: %w", err)
		}

		result = ns.parseGoogleNewsHTML(doc, params.Query)

		if len(result) > params.MaxResults {
			result = result[:params.MaxResults]
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	ns.cache.Set("google_news", "search", params, result)

	filePath := filepath.Join(config.DataDir, "news_data",
		fmt.Sprintf("google_news_%s_%s.json",
			strings.ReplaceAll(params.Query, " ", "_"),
			time.Now().Format("2006-01-02")))
	SaveDataToFile(result, filePath)

	return result, nil
}

// buildGoogleNewsURL constructs the Google News search URL
func (ns *NewsScraperClient) buildGoogleNewsURL(params GoogleNewsParams) string {
	baseURL := "https://news.google.com/search"

	query := url.QueryEscape(params.Query)

	// Google News uses after:/before: qualifiers inside the query
	if !params.StartDate.IsZero() && !params.EndDate.IsZero() {
		dateQuery := fmt.Sprintf(" after:%s before:%s",
			params.StartDate.Format("2006-01-02"),
			params.EndDate.Format("2006-01-02"))
		query += url.QueryEscape(dateQuery)
	}

	return fmt.Sprintf("%s?q=%s&hl=%s&gl=%s&ceid=%s:%s",
		baseURL, query, params.Language, params.Country, params.Country, params.Language)
}

// parseGoogleNewsHTML extracts articles from Google News HTML
func (ns *NewsScraperClient) parseGoogleNewsHTML(doc *goquery.Document, query string) []*NewsArticle {
	var articles []*NewsArticle

	doc.Find("article").Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h3").Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h4").Text())
		}

		if title == "" {
			return // Skip if no title found
		}

		link := s.Find("a").First()
		href, exists := link.Attr("href")
		if !exists {
			return
		}

		articleURL := ns.cleanGoogleNewsURL(href)

		source := strings.TrimSpace(s.Find("div[data-n-tid]").Text())
		if source == "" {
			source = "Google News"
		}

		// Google News only exposes relative publish times
		timeText := strings.TrimSpace(s.Find("time").Text())
		publishedAt := ns.parseRelativeTime(timeText)

		content := strings.TrimSpace(s.Find("span").Last().Text())

		article := &NewsArticle{
			Title:       title,
			Content:     content,
			URL:         articleURL,
			Source:      source,
			PublishedAt: publishedAt,
			Keywords:    []string{query},
			Metadata: map[string]string{
				"scraper":      "google_news",
				"original_url": href,
				"time_text":    timeText,
			},
		}

		articles = append(articles, article)
	})

	return articles
}

// cleanGoogleNewsURL removes Google News redirect wrapper
func (ns *NewsScraperClient) cleanGoogleNewsURL(googleURL string) string {
	if strings.Contains(googleURL, "url=") {
		parts := strings.Split(googleURL, "url=")
		if len(parts) > 1 {
			decoded, err := url.QueryUnescape(parts[1])
			if err == nil {
				return decoded
			}
		}
	}

	if strings.HasPrefix(googleURL, "./") {
		return "https://news.google.com" + googleURL[1:]
	}

	if strings.HasPrefix(googleURL, "/") {
		return "https://news.google.com" + googleURL
	}

	return googleURL
}

var (
	minuteAgoRe = regexp.MustCompile(`(\d+)\s*minutes?\s*ago`)
	hourAgoRe   = regexp.MustCompile(`(\d+)\s*hours?\s*ago`)
	dayAgoRe    = regexp.MustCompile(`(\d+)\s*days?\s*ago`)
)

// parseRelativeTime converts relative time strings to actual time
func (ns *NewsScraperClient) parseRelativeTime(timeText string) time.Time {
	now := time.Now()
	timeText = strings.ToLower(strings.TrimSpace(timeText))

	if timeText == "just now" || timeText == "" {
		return now
	}

	if matches := minuteAgoRe.FindStringSubmatch(timeText); len(matches) > 1 {
		if minutes, err := strconv.Atoi(matches[1]); err == nil {
			return now.Add(-time.Duration(minutes) * time.Minute)
		}
	}

	if matches := hourAgoRe.FindStringSubmatch(timeText); len(matches) > 1 {
		if hours, err := strconv.Atoi(matches[1]); err == nil {
			return now.Add(-time.Duration(hours) * time.Hour)
		}
	}

	if matches := dayAgoRe.FindStringSubmatch(timeText); len(matches) > 1 {
		if days, err := strconv.Atoi(matches[1]); err == nil {
			return now.Add(-time.Duration(days) * 24 * time.Hour)
		}
	}

	// If we can't parse it, assume it's recent
	return now.Add(-1 * time.Hour)
}

// GetNewsFromURL scrapes a specific news article URL
func (ns *NewsScraperClient) GetNewsFromURL(articleURL string) (*NewsArticle, error) {
	if strings.TrimSpace(articleURL) == "" {
		return nil, fmt.Errorf("article URL cannot be empty")
	}

	var cached NewsArticle
	if ns.cache.Get("article", "content", articleURL, &cached) {
		return &cached, nil
	}

	var result *NewsArticle
	err := WithRetry(DefaultRetryConfig(), func() error {
		resp, err := ns.client.R().Get(articleURL)
		if err != nil {
			return fmt.Errorf("failed to fetch article: %w", err)
		}

		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP error %d when fetching article", resp.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return fmt.Errorf("failed to parse HTML: %w", err)
		}

		result = ns.extractArticleContent(doc, articleURL)
		return nil
	})

	if err != nil {
		return nil, err
	}

	ns.cache.Set("article", "content", articleURL, result)

	return result, nil
}

// extractArticleContent extracts article content from HTML
func (ns *NewsScraperClient) extractArticleContent(doc *goquery.Document, articleURL string) *NewsArticle {
	title := ""
	titleSelectors := []string{"h1", "title", ".headline", ".article-title", ".entry-title"}
	for _, selector := range titleSelectors {
		if t := strings.TrimSpace(doc.Find(selector).First().Text()); t != "" {
			title = t
			break
		}
	}

	content := ""
	contentSelectors := []string{
		".article-content", ".entry-content", ".post-content",
		".content", "article p", ".article-body", ".story-body",
	}
	for _, selector := range contentSelectors {
		if c := strings.TrimSpace(doc.Find(selector).Text()); c != "" {
			content = c
			break
		}
	}

	source := ""
	if meta := doc.Find("meta[property='og:site_name']"); meta.Length() > 0 {
		source, _ = meta.Attr("content")
	}
	if source == "" {
		if u, err := url.Parse(articleURL); err == nil {
			source = u.Host
		}
	}

	publishedAt := time.Now()
	if meta := doc.Find("meta[property='article:published_time']"); meta.Length() > 0 {
		if dateStr, exists := meta.Attr("content"); exists {
			if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
				publishedAt = t
			}
		}
	}

	return &NewsArticle{
		Title:       title,
		Content:     content,
		URL:         articleURL,
		Source:      source,
		PublishedAt: publishedAt,
		Metadata: map[string]string{
			"scraper": "url_content",
		},
	}
}
