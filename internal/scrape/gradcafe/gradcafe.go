package gradcafe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"gradwatch-engine/internal/domain"
	"gradwatch-engine/internal/scrape/types"
	"gradwatch-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
)

// ErrDisallowed is returned when robots.txt forbids the listing URL.
var ErrDisallowed = errors.New("gradcafe: disallowed by robots.txt")

const DefaultBaseURL = "https://www.thegradcafe.com/survey/?institution=&program=economics"

type Config struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
}

type Scraper struct {
	cfg    Config
	hc     *http.Client
	lim    *util.HostLimiter
	robots *util.RobotsGate
}

func New(cfg Config, lim *util.HostLimiter) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "GradWatch/1.0 (+local)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if lim == nil {
		lim = util.NewHostLimiter(time.Second)
	}
	s := &Scraper{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
		lim: lim,
	}
	if cfg.RespectRobots {
		s.robots = util.NewRobotsGate(s.hc, cfg.UserAgent)
	}
	return s
}

func (s *Scraper) Name() string { return "gradcafe" }

// PageURL returns the listing URL for a 1-based page number.
func (s *Scraper) PageURL(page int) string {
	if page <= 1 {
		return s.cfg.BaseURL
	}
	return fmt.Sprintf("%s&page=%d", s.cfg.BaseURL, page)
}

func (s *Scraper) FetchPage(ctx context.Context, page int) (types.PageResult, error) {
	pageURL := s.PageURL(page)

	if s.robots != nil && !s.robots.Allowed(ctx, pageURL) {
		return types.PageResult{}, ErrDisallowed
	}
	if err := s.lim.WaitURL(ctx, pageURL); err != nil {
		return types.PageResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return types.PageResult{}, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	res, err := s.hc.Do(req)
	if err != nil {
		return types.PageResult{}, fmt.Errorf("%w: get page %d: %v", types.ErrUpstreamUnavailable, page, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return types.PageResult{}, fmt.Errorf("%w: page %d status %d", types.ErrUpstreamUnavailable, page, res.StatusCode)
	}

	out, err := ParsePage(res.Body)
	if err != nil {
		return types.PageResult{}, fmt.Errorf("page %d: %w", page, err)
	}
	out.Page = page
	return out, nil
}

var (
	resultIDRe   = regexp.MustCompile(`/result/(\d+)`)
	seasonRe     = regexp.MustCompile(`(Fall|Spring|Summer|Winter)\s*(\d{4})`)
	gpaRe        = regexp.MustCompile(`GPA\s*([\d.]+)`)
	greLabeledRe = regexp.MustCompile(`GRE\s*(V|AW|Q)\s*([\d.]+)`)
	greBareRe    = regexp.MustCompile(`GRE\s*(\d+)`)
	greSuffixRe  = regexp.MustCompile(`([\d.]+)\s*\((Q|V|AW)\)`)
)

// ParsePage extracts result candidates from one listing page.
func ParsePage(r io.Reader) (types.PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return types.PageResult{}, fmt.Errorf("%w: %v", types.ErrParse, err)
	}

	rows := doc.Find("tr")
	if rows.Length() == 0 {
		return types.PageResult{}, types.ErrParse
	}

	var out types.PageResult
	n := rows.Length()
	for i := 0; i < n; i++ {
		cells := rows.Eq(i).Find("td")
		if cells.Length() != 5 {
			continue
		}

		c := domain.RawCandidate{
			Institution:   util.CleanText(cells.Eq(0).Text()),
			ProgramRaw:    util.CleanText(cells.Eq(1).Text()),
			AddedDateRaw:  util.CleanText(cells.Eq(2).Text()),
			DecisionLabel: util.CleanText(cells.Eq(3).Text()),
		}
		cells.Eq(4).Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if m := resultIDRe.FindStringSubmatch(href); m != nil {
				c.ExternalID = m[1]
				return false
			}
			return true
		})

		if c.ExternalID == "" || c.Institution == "" {
			out.Dropped++
			continue
		}

		if i+1 < n {
			if details := rows.Eq(i + 1); details.HasClass("tw-border-none") {
				parseBadges(details, &c)
			}
		}
		if i+2 < n {
			if extra := rows.Eq(i + 2); extra.HasClass("tw-border-none") {
				if p := extra.Find("p").First(); p.Length() > 0 {
					c.Comment = util.CleanText(p.Text())
				}
			}
		}

		out.Candidates = append(out.Candidates, c)
	}
	return out, nil
}

func parseBadges(row *goquery.Selection, c *domain.RawCandidate) {
	row.Find("div.tw-inline-flex").Each(func(_ int, badge *goquery.Selection) {
		text := util.CleanText(badge.Text())
		if text == "" {
			return
		}

		if c.Season == "" {
			if m := seasonRe.FindStringSubmatch(text); m != nil {
				c.Season = m[1] + " " + m[2]
				return
			}
		}
		if c.Status == "" {
			if s := util.NormalizeStatus(text); s != "" {
				c.Status = s
				return
			}
		}
		if c.GPA == "" {
			if m := gpaRe.FindStringSubmatch(text); m != nil {
				c.GPA = m[1]
				return
			}
		}

		if strings.HasPrefix(text, "GRE") {
			if m := greLabeledRe.FindStringSubmatch(text); m != nil {
				setGRE(c, m[1], m[2], true)
				return
			}
			// "GRE 161" is the quant score without a label
			if c.Quant == "" {
				if m := greBareRe.FindStringSubmatch(text); m != nil {
					c.Quant = m[1]
					return
				}
			}
		}

		if m := greSuffixRe.FindStringSubmatch(text); m != nil {
			setGRE(c, m[2], m[1], false)
		}
	})
}

func setGRE(c *domain.RawCandidate, part, score string, overwrite bool) {
	var dst *string
	switch part {
	case "Q":
		dst = &c.Quant
	case "V":
		dst = &c.Verbal
	case "AW":
		dst = &c.Writing
	default:
		return
	}
	if overwrite || *dst == "" {
		*dst = score
	}
}
