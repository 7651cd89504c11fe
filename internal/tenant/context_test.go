package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_NoneBound(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestWithContext_RoundTrip(t *testing.T) {
	tc := Context{UserID: uuid.New(), Role: "restaurant_owner", RestaurantID: uuid.New(), HasRestaurant: true}
	ctx := WithContext(context.Background(), tc)

	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, tc, got)
}

func TestRequireRestaurant_PlatformOwnerSeesEverything(t *testing.T) {
	tc := Context{IsPlatformOwner: true}
	assert.NoError(t, tc.RequireRestaurant(uuid.New()))
}

func TestRequireRestaurant_MatchingRestaurantAllowed(t *testing.T) {
	restaurantID := uuid.New()
	tc := Context{HasRestaurant: true, RestaurantID: restaurantID}
	assert.NoError(t, tc.RequireRestaurant(restaurantID))
}

func TestRequireRestaurant_CrossTenantRejected(t *testing.T) {
	tc := Context{HasRestaurant: true, RestaurantID: uuid.New()}
	err := tc.RequireRestaurant(uuid.New())
	assert.ErrorIs(t, err, ErrContextMismatch)
}

func TestRequireRestaurant_NoRestaurantBoundRejected(t *testing.T) {
	tc := Context{HasRestaurant: false}
	err := tc.RequireRestaurant(uuid.New())
	assert.ErrorIs(t, err, ErrContextMismatch)
}
