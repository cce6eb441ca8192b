package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

func TestListItemsSendsScopeAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "d1", r.URL.Query().Get("department_id"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"i1","name":"Tripod","total_quantity":3},{"name":null}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, staticToken("tok"))
	items, err := c.ListItems(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "i1", *items[0].ID)
	assert.Equal(t, 3, *items[0].TotalQuantity)
	assert.Nil(t, items[0].AvailableQuantity)
	assert.Nil(t, items[1].ID)
	assert.Nil(t, items[1].Name)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		kind   errs.Kind
		msg    string
	}{
		{http.StatusBadRequest, `{"error":"insufficient stock, currently available = 2"}`, errs.KindValidation, "insufficient stock, currently available = 2"},
		{http.StatusUnprocessableEntity, `{"error":"name is required"}`, errs.KindValidation, "name is required"},
		{http.StatusNotFound, `{"error":"item not found"}`, errs.KindNotFound, "item not found"},
		{http.StatusConflict, `{"error":"contact already registered"}`, errs.KindConflict, "contact already registered"},
		{http.StatusUnauthorized, ``, errs.KindUnauthorized, "Unauthorized"},
		{http.StatusForbidden, `{"error":"insufficient permissions"}`, errs.KindUnauthorized, "insufficient permissions"},
		{http.StatusInternalServerError, `oops`, errs.KindServer, "Internal Server Error"},
		{http.StatusBadGateway, ``, errs.KindServer, "Bad Gateway"},
		{http.StatusGatewayTimeout, ``, errs.KindConnectivity, "Gateway Timeout"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, time.Second, nil)
			_, err := c.UpdateItem(context.Background(), "i1", ItemInput{Name: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
			assert.Equal(t, tt.msg, errs.Message(err))
		})
	}
}

func TestMalformedBodyIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": [`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second, nil).CreateCategory(context.Background(), NamedInput{Name: "Audio"})
	assert.Equal(t, errs.KindServer, errs.KindOf(err))
	assert.False(t, errs.NeedsEndpointPrompt(err))
	assert.True(t, errs.CanFallback(err))
}

func TestUnreachableIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPClient(addr, time.Second, nil).ListDepartments(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindConnectivity, errs.KindOf(err))
	assert.True(t, errs.NeedsEndpointPrompt(err))
}

func TestTimeoutIsConnectivity(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPClient(srv.URL, 50*time.Millisecond, nil).ListCategories(context.Background())
	assert.Equal(t, errs.KindConnectivity, errs.KindOf(err))
	assert.Equal(t, "remote service timed out", errs.Message(err))
}

func TestCancellationIsNotConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := NewHTTPClient(srv.URL, time.Second, nil).ListUsers(ctx, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, errs.KindConnectivity, errs.KindOf(err))
}

func TestMissingEndpoint(t *testing.T) {
	_, err := NewHTTPClient("", time.Second, nil).ListItems(context.Background(), "")
	assert.True(t, errs.NeedsEndpointPrompt(err))
}

func TestBorrowPostsBodyAndDecodesOutcome(t *testing.T) {
	due := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/borrows", r.URL.Path)
		var in BorrowInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "i1", in.ItemID)
		assert.Equal(t, 2, in.Quantity)
		assert.True(t, in.ExpectedReturnDate.Equal(due))
		w.Write([]byte(`{"item":{"id":"i1","available_quantity":1},"history":{"id":"h1","status":"BORROWING"}}`))
	}))
	defer srv.Close()

	out, err := NewHTTPClient(srv.URL, time.Second, nil).Borrow(context.Background(), BorrowInput{
		ItemID: "i1", Quantity: 2, Borrower: model.Contact{Name: "Dora"}, ExpectedReturnDate: due,
	})
	require.NoError(t, err)
	require.NotNil(t, out.History)
	assert.Equal(t, "h1", *out.History.ID)
	assert.Nil(t, out.Request)
	assert.Equal(t, 1, *out.Item.AvailableQuantity)
}

func TestUpdateItemOmitsAvailableQuantity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/items/i1", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "available_quantity")
		assert.EqualValues(t, 4, body["total_quantity"])
		w.Write([]byte(`{"id":"i1","total_quantity":4,"available_quantity":3}`))
	}))
	defer srv.Close()

	item, err := NewHTTPClient(srv.URL, time.Second, nil).UpdateItem(context.Background(), "i1", ItemInput{Name: "Tripod", TotalQuantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, *item.AvailableQuantity)
}

func TestSetBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient("http://127.0.0.1:1", time.Second, nil)
	c.SetBaseURL(srv.URL + "/")
	assert.Equal(t, srv.URL, c.BaseURL())
	assert.NoError(t, c.DeleteItem(context.Background(), "i1"))
}
