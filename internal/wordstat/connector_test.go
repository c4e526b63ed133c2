package wordstat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeGateway scripts per-phrase outcomes and records call counts.
type fakeGateway struct {
	forest     []RegionNode
	forestErr  error
	topFn      func(phrase string) (TopResult, error)
	dynamicsFn func(q DynamicsQuery) (DynamicsResult, error)
	topCalls   int
	dynCalls   int
	treeCalls  int
}

func (f *fakeGateway) TopRequests(_ context.Context, phrase string, _ []int64, _ []string) (TopResult, error) {
	f.topCalls++
	if f.topFn == nil {
		return TopResult{}, nil
	}
	return f.topFn(phrase)
}

func (f *fakeGateway) Dynamics(_ context.Context, q DynamicsQuery) (DynamicsResult, error) {
	f.dynCalls++
	if f.dynamicsFn == nil {
		return DynamicsResult{}, nil
	}
	return f.dynamicsFn(q)
}

func (f *fakeGateway) RegionsTree(_ context.Context) ([]RegionNode, error) {
	f.treeCalls++
	if f.forestErr != nil {
		return nil, f.forestErr
	}
	return f.forest, nil
}

func defaultForest() []RegionNode {
	return []RegionNode{
		{Value: regionValue(213), Label: "Москва"},
		{Value: regionValue(2), Label: "Санкт-Петербург"},
	}
}

func newTestConnector(t *testing.T, gw *fakeGateway) *Connector {
	t.Helper()
	connector, err := NewConnector(context.Background(), gw, WithPause(0))
	require.NoError(t, err)
	return connector
}

func TestNewConnectorLoadsCatalogOnce(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{forest: defaultForest()}
	connector := newTestConnector(t, gw)

	require.Equal(t, 1, gw.treeCalls)
	require.Equal(t, []Region{
		{ID: 213, Label: "Москва"},
		{ID: 2, Label: "Санкт-Петербург"},
	}, connector.Regions())
}

func TestNewConnectorFailsClosedWithoutCatalog(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{forestErr: &RemoteAPIError{Status: 503, Body: "unavailable"}}
	_, err := NewConnector(context.Background(), gw)

	var apiErr *RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 503, apiErr.Status)
}

func TestRegionsReturnsACopy(t *testing.T) {
	t.Parallel()

	connector := newTestConnector(t, &fakeGateway{forest: defaultForest()})
	regions := connector.Regions()
	regions[0].Label = "mutated"
	require.Equal(t, "Москва", connector.Regions()[0].Label)
}
