package brands

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/brandpay-backend/pkg/db/models"
	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
)

type mapRepository map[string]*models.Brand

func (m mapRepository) FindByID(_ context.Context, id string) (*models.Brand, error) {
	if b, ok := m[id]; ok {
		clone := *b
		return &clone, nil
	}
	return nil, docstore.ErrNotFound
}

func chain(links map[string]string) mapRepository {
	repo := mapRepository{}
	for id, parent := range links {
		repo[id] = &models.Brand{ID: id, ParentID: parent}
	}
	return repo
}

func TestParents(t *testing.T) {
	svc, err := NewService(chain(map[string]string{
		"shop":   "region",
		"region": "master",
		"master": "",
	}))
	require.NoError(t, err)

	cases := []struct {
		brand  string
		parent string
		master string
	}{
		{brand: "shop", parent: "region", master: "master"},
		{brand: "region", parent: "master", master: "master"},
		{brand: "master", parent: "", master: "master"},
	}
	for _, tc := range cases {
		t.Run(tc.brand, func(t *testing.T) {
			got, err := svc.Parents(context.Background(), tc.brand)
			require.NoError(t, err)
			if tc.parent == "" {
				assert.Nil(t, got.Parent)
			} else {
				require.NotNil(t, got.Parent)
				assert.Equal(t, tc.parent, got.Parent.ID)
			}
			assert.Equal(t, tc.master, got.Master.ID)
		})
	}
}

func TestParentsDetectsCycle(t *testing.T) {
	svc, err := NewService(chain(map[string]string{"a": "b", "b": "c", "c": "a"}))
	require.NoError(t, err)

	_, err = svc.Parents(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
	assert.Equal(t, pkgerrors.CodeSiteInfo, pkgerrors.CodeOf(err))
}

func TestParentsDepthBound(t *testing.T) {
	links := map[string]string{}
	for i := 0; i < MaxDepth+3; i++ {
		links[fmt.Sprintf("b%d", i)] = fmt.Sprintf("b%d", i+1)
	}
	links[fmt.Sprintf("b%d", MaxDepth+3)] = ""
	svc, err := NewService(chain(links))
	require.NoError(t, err)

	_, err = svc.Parents(context.Background(), "b0")
	assert.True(t, errors.Is(err, ErrTooDeep))
}

func TestParentsMissingAncestor(t *testing.T) {
	svc, err := NewService(chain(map[string]string{"shop": "gone"}))
	require.NoError(t, err)

	_, err = svc.Parents(context.Background(), "shop")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
