package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore/docstoretest"
	"github.com/angelmondragon/brandpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

func TestGetUser(t *testing.T) {
	store := docstoretest.NewSQLStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, models.CollectionUsers, &models.User{ID: "u1", DefaultCurrency: enums.CurrencyNGN}, true))
	require.NoError(t, store.Upsert(ctx, models.CollectionUsers, &models.User{ID: "u2", DefaultCurrency: enums.CurrencyGHS}, true))

	svc, err := NewService(NewRepository(store))
	require.NoError(t, err)

	user, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, enums.CurrencyNGN, user.DefaultCurrency)

	_, err = svc.GetUser(ctx, "missing")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = svc.GetUser(ctx, " ")
	assert.Equal(t, pkgerrors.CodeMissingFields, pkgerrors.CodeOf(err))

	byID, err := svc.GetUsers(ctx, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, enums.CurrencyGHS, byID["u2"].DefaultCurrency)
}
