package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/backyonatan-alt/petitionwatch/internal/config"
	"github.com/backyonatan-alt/petitionwatch/internal/model"
)

// Fetcher holds the shared HTTP client for the petitions and members APIs.
// It performs no retries: every failure is returned to the caller.
type Fetcher struct {
	client       *resty.Client
	petitionsURL *url.URL
	membersURL   string
}

func New(cfg config.SourceConfig) (*Fetcher, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.PetitionsURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse petitions url: %w", err)
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Fetcher{
		client:       client,
		petitionsURL: base,
		membersURL:   cfg.MembersURL,
	}, nil
}

// The members API prefixes its JSON with a byte order mark.
var utf8BOM = []byte("\xef\xbb\xbf")

func (f *Fetcher) get(ctx context.Context, what, rawURL string, out any) error {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return fmt.Errorf("%s request: %w", what, err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("%s API error: %d", what, resp.StatusCode())
	}
	body := bytes.TrimPrefix(resp.Body(), utf8BOM)
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s parse: %w", what, err)
	}
	return nil
}

// resolve turns a link from a response into an absolute URL against the
// petitions base.
func (f *Fetcher) resolve(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return f.petitionsURL.ResolveReference(u).String(), nil
}

// FirstPageURL is the listing of open petitions, page 1.
func (f *Fetcher) FirstPageURL() string {
	return f.petitionsURL.String() + "/petitions.json?state=open"
}

type listingResponse struct {
	Links struct {
		Next *string `json:"next"`
		Last *string `json:"last"`
	} `json:"links"`
	Data []struct {
		ID         int64 `json:"id"`
		Attributes struct {
			SignatureCount *int64 `json:"signature_count"`
		} `json:"attributes"`
	} `json:"data"`
}

// ListingPage fetches one page of open petitions. An empty pageURL requests
// the first page.
func (f *Fetcher) ListingPage(ctx context.Context, pageURL string) (model.ListingPage, error) {
	if pageURL == "" {
		pageURL = f.FirstPageURL()
	}
	slog.Debug("fetching petition listing", "url", pageURL)

	var raw listingResponse
	if err := f.get(ctx, "petition listing", pageURL, &raw); err != nil {
		return model.ListingPage{}, err
	}

	page := model.ListingPage{Items: make([]model.ListedPetition, 0, len(raw.Data))}
	for _, item := range raw.Data {
		n, err := model.CheckCount(fmt.Sprintf("petition %d signature_count", item.ID), item.Attributes.SignatureCount)
		if err != nil {
			return model.ListingPage{}, fmt.Errorf("petition listing: %w", err)
		}
		page.Items = append(page.Items, model.ListedPetition{ID: item.ID, Signatures: n})
	}

	if raw.Links.Next != nil && *raw.Links.Next != "" {
		next, err := f.resolve(*raw.Links.Next)
		if err != nil {
			return model.ListingPage{}, fmt.Errorf("petition listing next link: %w", err)
		}
		page.Next = next
	}
	if raw.Links.Last != nil {
		page.PageCount = pageNumber(*raw.Links.Last)
	}
	return page, nil
}

// pageNumber extracts the page query parameter of a listing link. A link
// without one is page 1; an unparseable link yields 0.
func pageNumber(link string) int {
	u, err := url.Parse(link)
	if err != nil {
		return 0
	}
	p := u.Query().Get("page")
	if p == "" {
		return 1
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

type breakdownEntry struct {
	Name           string `json:"name"`
	SignatureCount *int64 `json:"signature_count"`
}

type detailResponse struct {
	Data struct {
		ID         int64 `json:"id"`
		Attributes struct {
			Action                   string           `json:"action"`
			SignatureCount           *int64           `json:"signature_count"`
			SignaturesByCountry      []breakdownEntry `json:"signatures_by_country"`
			SignaturesByRegion       []breakdownEntry `json:"signatures_by_region"`
			SignaturesByConstituency []breakdownEntry `json:"signatures_by_constituency"`
		} `json:"attributes"`
	} `json:"data"`
}

// Petition fetches the full detail record of one petition.
func (f *Fetcher) Petition(ctx context.Context, id int64) (model.PetitionDetail, error) {
	what := fmt.Sprintf("petition %d", id)
	var raw detailResponse
	if err := f.get(ctx, what, fmt.Sprintf("%s/petitions/%d.json", f.petitionsURL, id), &raw); err != nil {
		return model.PetitionDetail{}, err
	}

	attrs := raw.Data.Attributes
	total, err := model.CheckCount(what+" signature_count", attrs.SignatureCount)
	if err != nil {
		return model.PetitionDetail{}, err
	}
	detail := model.PetitionDetail{
		ID:         id,
		Name:       attrs.Action,
		Signatures: total,
	}
	if detail.Countries, err = counts(what+" country", attrs.SignaturesByCountry); err != nil {
		return model.PetitionDetail{}, err
	}
	if detail.Regions, err = counts(what+" region", attrs.SignaturesByRegion); err != nil {
		return model.PetitionDetail{}, err
	}
	if detail.Constituencies, err = counts(what+" constituency", attrs.SignaturesByConstituency); err != nil {
		return model.PetitionDetail{}, err
	}
	return detail, nil
}

func counts(what string, entries []breakdownEntry) ([]model.Count, error) {
	out := make([]model.Count, 0, len(entries))
	for _, e := range entries {
		n, err := model.CheckCount(what+" "+e.Name, e.SignatureCount)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Count{Name: e.Name, Signatures: n})
	}
	return out, nil
}

type membersResponse struct {
	Members struct {
		Member []struct {
			DisplayAs string `json:"DisplayAs"`
			Party     struct {
				Name string `json:"#text"`
			} `json:"Party"`
			MemberFrom string `json:"MemberFrom"`
		} `json:"Member"`
	} `json:"Members"`
}

// Members fetches the full members listing in a single request.
func (f *Fetcher) Members(ctx context.Context) ([]model.Member, error) {
	slog.Info("fetching members listing")

	var raw membersResponse
	if err := f.get(ctx, "members", f.membersURL, &raw); err != nil {
		return nil, err
	}

	members := make([]model.Member, 0, len(raw.Members.Member))
	for _, m := range raw.Members.Member {
		members = append(members, model.Member{
			Name:         m.DisplayAs,
			Party:        strings.TrimSpace(m.Party.Name),
			Constituency: strings.TrimSpace(m.MemberFrom),
		})
	}
	slog.Info("members result", "count", len(members))
	return members, nil
}
