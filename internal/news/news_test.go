package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/marketpulse/internal/models"
)

const feedA = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Feed A</title>
<item><title>ACME beats earnings</title><link>https://a.example/1</link></item>
<item><title>ACME   announces buyback</title><link>https://a.example/2</link></item>
</channel></rss>`

const feedB = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Feed B</title>
<item><title>acme beats EARNINGS</title><link>https://b.example/1</link><source url="https://wire">Wire</source></item>
<item><title>Analyst upgrade for ACME</title><link>https://b.example/2</link><source url="https://wire">Wire</source></item>
<item><title>  </title><link>https://b.example/3</link></item>
</channel></rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ACME", r.URL.Query().Get("s"))
		fmt.Fprint(w, feedA)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, feedB) })
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSClient_MergesAndDedupes(t *testing.T) {
	srv := newFeedServer(t)
	c := NewRSSClient([]Feed{
		{Name: "broken", URL: srv.URL + "/broken"},
		{Name: "A", URL: srv.URL + "/a?s={symbol}"},
		{Name: "B", URL: srv.URL + "/b?q={symbol}"},
	}, time.Second, 1000, nil)

	items := c.News(context.Background(), "ACME", 10)
	require.Len(t, items, 3)
	assert.Equal(t, models.NewsItem{Source: "A", Title: "ACME beats earnings", URL: "https://a.example/1"}, items[0])
	assert.Equal(t, "ACME   announces buyback", items[1].Title)
	assert.Equal(t, "Analyst upgrade for ACME", items[2].Title)
	assert.Equal(t, "Wire", items[2].Source)
}

func TestRSSClient_Limit(t *testing.T) {
	srv := newFeedServer(t)
	c := NewRSSClient([]Feed{
		{Name: "A", URL: srv.URL + "/a?s={symbol}"},
		{Name: "B", URL: srv.URL + "/b"},
	}, time.Second, 1000, nil)

	assert.Len(t, c.News(context.Background(), "ACME", 1), 1)
	assert.Nil(t, c.News(context.Background(), "ACME", 0))
}

func TestRSSClient_AllFeedsDown(t *testing.T) {
	srv := newFeedServer(t)
	c := NewRSSClient([]Feed{{Name: "broken", URL: srv.URL + "/broken"}}, time.Second, 1000, nil)
	assert.Empty(t, c.News(context.Background(), "ACME", 5))
}

func TestDedupe(t *testing.T) {
	items := []models.NewsItem{
		{Title: "Hello World"},
		{Title: "hello   world "},
		{Title: ""},
		{Title: "Other"},
	}
	got := Dedupe(items)
	require.Len(t, got, 2)
	assert.Equal(t, "Hello World", got[0].Title)
	assert.Equal(t, "Other", got[1].Title)
}
