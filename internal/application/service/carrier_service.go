package service

import (
	"context"
	"sort"
	"strings"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/pkg/utils"
)

// CarrierService recommends carriers from address keywords
type CarrierService interface {
	// Recommend returns the highest-priority enabled rule whose keyword occurs
	// in address, or nil when none does
	Recommend(ctx context.Context, address string) (*entity.CarrierRule, error)

	CreateRule(ctx context.Context, rule *entity.CarrierRule) error
}

type carrierServiceImpl struct {
	ruleRepo port.CarrierRuleRepository
	logger   Logger
}

// NewCarrierService creates a new CarrierService
func NewCarrierService(ruleRepo port.CarrierRuleRepository, logger Logger) CarrierService {
	return &carrierServiceImpl{
		ruleRepo: ruleRepo,
		logger:   loggerOrNop(logger),
	}
}

func (s *carrierServiceImpl) Recommend(ctx context.Context, address string) (*entity.CarrierRule, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}

	rules, err := s.ruleRepo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	// First match wins, not the most specific one
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	for _, rule := range rules {
		keyword := strings.TrimSpace(rule.Keyword)
		if keyword != "" && strings.Contains(address, keyword) {
			return rule, nil
		}
	}
	return nil, nil
}

func (s *carrierServiceImpl) CreateRule(ctx context.Context, rule *entity.CarrierRule) error {
	rule.CarrierName = utils.SanitizeString(rule.CarrierName)
	rule.Keyword = utils.SanitizeString(rule.Keyword)
	if err := utils.RequireText("carrier name", rule.CarrierName); err != nil {
		return invalid(err)
	}
	if err := utils.RequireText("keyword", rule.Keyword); err != nil {
		return invalid(err)
	}

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		s.logger.Error("Failed to create carrier rule", "error", err, "carrier", rule.CarrierName)
		return err
	}
	s.logger.Info("Carrier rule created", "rule_id", rule.ID, "carrier", rule.CarrierName, "keyword", rule.Keyword)
	return nil
}
