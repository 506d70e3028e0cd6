// Package scrape fetches part specifications from supplier catalog sites.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spherical-ai/part-extractor/internal/cache"
	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/htmlclean"
	"github.com/spherical-ai/part-extractor/internal/observability"
)

// Options configures a Scraper.
type Options struct {
	Timeout  time.Duration // per site
	Retries  int           // browser start-up attempts
	Delay    time.Duration // settle time after the page script, and between start-up attempts
	CacheTTL time.Duration
}

// Scraper tries each supplier profile in order and returns the first
// non-empty cleaned content. It owns one long-lived browser session, started
// on first use and released by Close.
type Scraper struct {
	profiles []domain.SiteProfile
	launch   Launcher
	cache    cache.Client
	opts     Options
	logger   *observability.Logger

	mu      sync.Mutex
	browser Browser
	group   singleflight.Group
}

// New creates a scraper. c may be nil to disable caching.
func New(launch Launcher, profiles []domain.SiteProfile, c cache.Client, opts Options, logger *observability.Logger) *Scraper {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	return &Scraper{
		profiles: profiles,
		launch:   launch,
		cache:    c,
		opts:     opts,
		logger:   logger.WithComponent("scrape"),
	}
}

// Scrape returns cleaned supplier content for partNumber, or false when no
// profile yields any. Concurrent calls for one part number share a lookup.
func (s *Scraper) Scrape(ctx context.Context, partNumber string) (string, bool) {
	partNumber = strings.TrimSpace(partNumber)
	if partNumber == "" {
		return "", false
	}

	key := cache.Key("scrape", partNumber)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			return string(data), true
		}
	}

	v, _, _ := s.group.Do(partNumber, func() (interface{}, error) {
		content := s.scrapeProfiles(ctx, partNumber)
		if content != "" && s.cache != nil {
			if err := s.cache.Set(ctx, key, []byte(content), s.opts.CacheTTL); err != nil {
				s.logger.Warn().Err(err).Msg("cache scraped content")
			}
		}
		return content, nil
	})

	content := v.(string)
	return content, content != ""
}

func (s *Scraper) scrapeProfiles(ctx context.Context, partNumber string) string {
	log := s.logger.WithContext(ctx).WithOperation("scrape")

	for _, profile := range s.profiles {
		if !profile.Matches(partNumber) {
			log.Debug().Str("site", profile.Name).Str("part_number", partNumber).Msg("part number does not match site pattern")
			continue
		}
		if ctx.Err() != nil {
			return ""
		}

		content, err := s.scrapeSite(ctx, profile, partNumber)
		if domain.IsType(err, domain.ErrorTypeClientInit) {
			log.Error().Err(err).Msg("browser unavailable")
			return ""
		}
		if err != nil {
			log.Warn().Err(err).Str("site", profile.Name).Msg("site failed, trying next")
			continue
		}
		if content == "" {
			log.Info().Str("site", profile.Name).Msg("site returned no content")
			continue
		}

		log.Info().Str("site", profile.Name).Str("part_number", partNumber).Int("bytes", len(content)).Msg("scraped supplier content")
		return content
	}

	log.Info().Str("part_number", partNumber).Msg("no supplier site returned content")
	return ""
}

func (s *Scraper) scrapeSite(ctx context.Context, profile domain.SiteProfile, partNumber string) (string, error) {
	browser, err := s.session(ctx)
	if err != nil {
		return "", err
	}

	siteCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout+profile.ScriptWait+s.opts.Delay)
	defer cancel()

	raw, err := browser.OuterHTML(siteCtx, PageRequest{
		URL:      profile.URL(partNumber),
		Script:   profile.PreFetchScript,
		Wait:     profile.ScriptWait + s.opts.Delay,
		Selector: profile.ContentSelector,
	})
	if err != nil {
		return "", domain.ScrapeError(profile.Name, err)
	}

	content, err := htmlclean.Clean(raw, profile.Name)
	if err != nil {
		return "", domain.ScrapeError(fmt.Sprintf("%s: clean content", profile.Name), err)
	}
	return strings.TrimSpace(content), nil
}

// session returns the browser, starting it with retries on first use.
func (s *Scraper) session(ctx context.Context) (Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		return s.browser, nil
	}
	if s.launch == nil {
		return nil, domain.ClientInitError("no browser configured", nil)
	}

	var errs []error
	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		b, err := s.launch(ctx)
		if err == nil {
			s.browser = b
			s.logger.Info().Int("attempt", attempt).Msg("browser session started")
			return b, nil
		}
		errs = append(errs, err)
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("browser start failed")

		if attempt < s.opts.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.Delay):
			}
		}
	}
	return nil, domain.ClientInitError(fmt.Sprintf("browser did not start after %d attempts", s.opts.Retries), errors.Join(errs...))
}

// Close releases the browser session.
func (s *Scraper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}
