package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/backyonatan-alt/petitionwatch/internal/config"
	"github.com/backyonatan-alt/petitionwatch/internal/model"
)

func newTestFetcher(t *testing.T, handler http.Handler) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f, err := New(config.SourceConfig{
		PetitionsURL: srv.URL,
		MembersURL:   srv.URL + "/members",
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return f
}

func TestListingPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/petitions.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "open", r.URL.Query().Get("state"))
		switch r.URL.Query().Get("page") {
		case "":
			w.Write([]byte(`{
				"links": {
					"self": "/petitions.json?state=open",
					"next": "/petitions.json?page=2&state=open",
					"last": "https://petition.parliament.uk/petitions.json?page=3&state=open"
				},
				"data": [
					{"type": "petition", "id": 101, "attributes": {"action": "A", "signature_count": 10}},
					{"type": "petition", "id": 102, "attributes": {"action": "B", "signature_count": 0}}
				]
			}`))
		case "3":
			w.Write([]byte(`{"links": {"next": null, "last": "/petitions.json?page=3&state=open"}, "data": []}`))
		default:
			http.NotFound(w, r)
		}
	})
	f := newTestFetcher(t, mux)
	ctx := context.Background()

	page, err := f.ListingPage(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []model.ListedPetition{{ID: 101, Signatures: 10}, {ID: 102, Signatures: 0}}, page.Items)
	require.Equal(t, f.petitionsURL.String()+"/petitions.json?page=2&state=open", page.Next)
	require.Equal(t, 3, page.PageCount)

	last, err := f.ListingPage(ctx, f.petitionsURL.String()+"/petitions.json?page=3&state=open")
	require.NoError(t, err)
	require.Empty(t, last.Items)
	require.Empty(t, last.Next)
}

func TestListingPageRejectsInvalidCounts(t *testing.T) {
	for name, body := range map[string]string{
		"missing":  `{"links": {}, "data": [{"id": 1, "attributes": {}}]}`,
		"negative": `{"links": {}, "data": [{"id": 1, "attributes": {"signature_count": -1}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			_, err := f.ListingPage(context.Background(), "")
			require.ErrorIs(t, err, model.ErrInvalidCount)
		})
	}
}

func TestPetition(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/petitions/42.json", r.URL.Path)
		w.Write([]byte(`{
			"data": {
				"type": "petition",
				"id": 42,
				"attributes": {
					"action": "Do the thing",
					"signature_count": 15,
					"signatures_by_country": [{"name": "United Kingdom", "code": "GB", "signature_count": 14}, {"name": "France", "code": "FR", "signature_count": 1}],
					"signatures_by_region": [{"name": "London", "ons_code": "H", "signature_count": 14}],
					"signatures_by_constituency": [{"name": "Aberavon", "ons_code": "W07000049", "signature_count": 10}, {"name": "Aberconwy", "ons_code": "W07000058", "signature_count": 4}]
				}
			}
		}`))
	}))

	detail, err := f.Petition(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, model.PetitionDetail{
		ID:         42,
		Name:       "Do the thing",
		Signatures: 15,
		Countries:  []model.Count{{Name: "United Kingdom", Signatures: 14}, {Name: "France", Signatures: 1}},
		Regions:    []model.Count{{Name: "London", Signatures: 14}},
		Constituencies: []model.Count{
			{Name: "Aberavon", Signatures: 10},
			{Name: "Aberconwy", Signatures: 4},
		},
	}, detail)
}

func TestPetitionErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		_, err := f.Petition(context.Background(), 1)
		require.ErrorContains(t, err, "petition 1 API error: 503")
	})

	t.Run("malformed json", func(t *testing.T) {
		f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": `))
		}))
		_, err := f.Petition(context.Background(), 1)
		require.ErrorContains(t, err, "petition 1 parse")
	})

	t.Run("missing constituency count", func(t *testing.T) {
		f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": {"id": 1, "attributes": {"action": "x", "signature_count": 3,
				"signatures_by_constituency": [{"name": "Aberavon"}]}}}`))
		}))
		_, err := f.Petition(context.Background(), 1)
		require.ErrorIs(t, err, model.ErrInvalidCount)
		require.ErrorContains(t, err, "Aberavon")
	})
}

func TestMembers(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/members", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte("\xef\xbb\xbf" + `{"Members": {"Member": [
			{"@Member_Id": "172", "DisplayAs": "Ms Diane Abbott", "Party": {"@Id": "15", "#text": "Labour"}, "MemberFrom": "Hackney North and Stoke Newington"},
			{"@Member_Id": "4212", "DisplayAs": "Stephen Kinnock", "Party": {"@Id": "15", "#text": "Labour"}, "MemberFrom": " Aberavon "}
		]}}`))
	}))

	members, err := f.Members(context.Background())
	require.NoError(t, err)
	require.Equal(t, []model.Member{
		{Name: "Ms Diane Abbott", Party: "Labour", Constituency: "Hackney North and Stoke Newington"},
		{Name: "Stephen Kinnock", Party: "Labour", Constituency: "Aberavon"},
	}, members)
}

func TestPageNumber(t *testing.T) {
	require.Equal(t, 7, pageNumber("https://petition.parliament.uk/petitions.json?page=7&state=open"))
	require.Equal(t, 1, pageNumber("/petitions.json?state=open"))
	require.Equal(t, 0, pageNumber("/petitions.json?page=abc"))
}
