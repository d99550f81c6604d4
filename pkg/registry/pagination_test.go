package registry

import (
	"fmt"
	"sort"
	"testing"

	"github.com/cuemby/beacon/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit *uint32
		want  int
	}{
		{name: "default", limit: nil, want: DefaultLimit},
		{name: "zero clamps to one", limit: ptr[uint32](0), want: 1},
		{name: "in range", limit: ptr[uint32](7), want: 7},
		{name: "max", limit: ptr[uint32](30), want: 30},
		{name: "above max", limit: ptr[uint32](1000), want: MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampLimit(tt.limit))
		})
	}
}

func seedAlerts(t *testing.T, env *testEnv, n int) []string {
	t.Helper()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		alert := env.createAlert(t, &types.CreateAlertRequest{
			Blockchain: "eth",
			Protocol:   fmt.Sprintf("proto%02d", i),
			Method:     "call",
		})
		keys = append(keys, alert.Key)
	}
	sort.Strings(keys)
	return keys
}

func listAlertKeys(t *testing.T, env *testEnv, page types.PageRequest) []string {
	t.Helper()
	var out []string
	require.NoError(t, env.view(func(r *Registry) error {
		alerts, err := r.ListAlerts(page)
		if err != nil {
			return err
		}
		for _, a := range alerts {
			out = append(out, a.Key)
		}
		return nil
	}))
	return out
}

func TestListAlertsLimitClamping(t *testing.T) {
	env := newTestEnv(t)
	seedAlerts(t, env, 35)

	assert.Len(t, listAlertKeys(t, env, types.PageRequest{}), DefaultLimit)
	assert.Len(t, listAlertKeys(t, env, types.PageRequest{Limit: ptr[uint32](0)}), 1)
	assert.Len(t, listAlertKeys(t, env, types.PageRequest{Limit: ptr[uint32](1000)}), MaxLimit)
	assert.Len(t, listAlertKeys(t, env, types.PageRequest{Limit: ptr[uint32](12)}), 12)
}

func TestListAlertsDefaultOrderIsDescending(t *testing.T) {
	env := newTestEnv(t)
	keys := seedAlerts(t, env, 3)

	got := listAlertKeys(t, env, types.PageRequest{})
	assert.Equal(t, []string{keys[2], keys[1], keys[0]}, got)

	got = listAlertKeys(t, env, types.PageRequest{Order: types.OrderAscending})
	assert.Equal(t, keys, got)
}

func TestListAlertsPaginationExhaustive(t *testing.T) {
	env := newTestEnv(t)
	keys := seedAlerts(t, env, 23)

	reversed := make([]string, len(keys))
	for i, k := range keys {
		reversed[len(keys)-1-i] = k
	}

	tests := []struct {
		name  string
		order types.Order
		limit uint32
		want  []string
	}{
		{name: "ascending by 5", order: types.OrderAscending, limit: 5, want: keys},
		{name: "descending by 5", order: types.OrderDescending, limit: 5, want: reversed},
		{name: "ascending by 1", order: types.OrderAscending, limit: 1, want: keys},
		{name: "descending by 30", order: types.OrderDescending, limit: 30, want: reversed},
		{name: "default order by 4", limit: 4, want: reversed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []string
			var cursor *string
			for pages := 0; pages <= len(keys); pages++ {
				page := listAlertKeys(t, env, types.PageRequest{
					StartAfter: cursor,
					Limit:      ptr(tt.limit),
					Order:      tt.order,
				})
				if len(page) == 0 {
					break
				}
				assert.LessOrEqual(t, len(page), int(tt.limit))
				seen = append(seen, page...)
				cursor = ptr(page[len(page)-1])
			}
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestListAlertsCursorIncludesLongerKeys(t *testing.T) {
	env := newTestEnv(t)
	env.createAlert(t, &types.CreateAlertRequest{Blockchain: "eth", Protocol: "uniswap", Method: "swap"})
	env.createAlert(t, &types.CreateAlertRequest{Blockchain: "eth", Protocol: "uniswap", Method: "swap2"})

	got := listAlertKeys(t, env, types.PageRequest{
		StartAfter: ptr("eth.uniswap.swap"),
		Order:      types.OrderAscending,
	})
	assert.Equal(t, []string{"eth.uniswap.swap2"}, got)

	got = listAlertKeys(t, env, types.PageRequest{
		StartAfter: ptr("eth.uniswap.swap2"),
		Order:      types.OrderDescending,
	})
	assert.Equal(t, []string{"eth.uniswap.swap"}, got)
}

func TestListSubscriptionsPaginationExhaustive(t *testing.T) {
	env := newTestEnv(t)
	keys := seedAlerts(t, env, 12)
	for _, key := range keys {
		require.NoError(t, env.update(func(r *Registry) error {
			_, err := r.SubscribeAlert(env.alice, &types.SubscribeAlertRequest{AlertKey: key})
			return err
		}))
	}
	// Another subscriber's entries must never leak into alice's pages
	require.NoError(t, env.update(func(r *Registry) error {
		_, err := r.SubscribeAlert(env.bob, &types.SubscribeAlertRequest{AlertKey: keys[0]})
		return err
	}))

	for _, order := range []types.Order{types.OrderAscending, types.OrderDescending} {
		t.Run(string(order), func(t *testing.T) {
			var seen []string
			var cursor *string
			for pages := 0; pages <= len(keys); pages++ {
				var page []*types.Subscription
				require.NoError(t, env.view(func(r *Registry) error {
					var err error
					page, err = r.ListSubscriptions(env.alice, types.PageRequest{
						StartAfter: cursor,
						Limit:      ptr[uint32](5),
						Order:      order,
					})
					return err
				}))
				if len(page) == 0 {
					break
				}
				for _, s := range page {
					assert.Equal(t, env.alice, s.Subscriber)
				}
				seen = append(seen, subscriptionKeys(page)...)
				cursor = ptr(page[len(page)-1].AlertKey)
			}

			want := append([]string(nil), keys...)
			if order == types.OrderDescending {
				sort.Sort(sort.Reverse(sort.StringSlice(want)))
			}
			assert.Equal(t, want, seen)
		})
	}
}
