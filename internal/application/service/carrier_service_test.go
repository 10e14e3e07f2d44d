package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

func TestCarrierService_Recommend(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rules := []*entity.CarrierRule{
		{CarrierName: "SF Express", Keyword: "北京", Priority: 10, Enabled: true},
		{CarrierName: "Deppon", Keyword: "北京市", Priority: 5, Enabled: true},
		{CarrierName: "ZTO", Keyword: "上海", Priority: 1, Enabled: true},
		{CarrierName: "Disabled Co", Keyword: "广州", Priority: 99, Enabled: false},
	}
	for _, r := range rules {
		require.NoError(t, e.carriers.CreateRule(ctx, r))
	}

	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"higher priority beats longer keyword", "北京市朝阳区建国路88号", "SF Express"},
		{"surrounding whitespace ignored", "  上海市浦东新区 ", "ZTO"},
		{"disabled rule never matches", "广州市天河区", ""},
		{"no keyword present", "深圳市南山区", ""},
		{"blank address", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := e.carriers.Recommend(ctx, tt.address)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, rule)
				return
			}
			require.NotNil(t, rule)
			assert.Equal(t, tt.want, rule.CarrierName)
		})
	}
}

func TestCarrierService_EqualPriorityKeepsCreationOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.carriers.CreateRule(ctx, &entity.CarrierRule{CarrierName: "First", Keyword: "杭州", Priority: 3, Enabled: true}))
	require.NoError(t, e.carriers.CreateRule(ctx, &entity.CarrierRule{CarrierName: "Second", Keyword: "西湖", Priority: 3, Enabled: true}))

	rule, err := e.carriers.Recommend(ctx, "杭州市西湖区")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "First", rule.CarrierName)
}

func TestCarrierService_CreateRuleValidates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := e.carriers.CreateRule(ctx, &entity.CarrierRule{CarrierName: " ", Keyword: "北京", Enabled: true})
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)

	err = e.carriers.CreateRule(ctx, &entity.CarrierRule{CarrierName: "SF", Keyword: "\t", Enabled: true})
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)

	rule := &entity.CarrierRule{CarrierName: " SF Express ", Keyword: " 北京 ", Enabled: true}
	require.NoError(t, e.carriers.CreateRule(ctx, rule))
	assert.NotZero(t, rule.ID)
	assert.Equal(t, "SF Express", rule.CarrierName)
	assert.Equal(t, "北京", rule.Keyword)
}
