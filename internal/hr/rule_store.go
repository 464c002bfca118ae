package hr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/platform/database"
	"gopkg.in/yaml.v3"
)

// RuleStore persists rule policies. Conditions are stored as JSONB.
type RuleStore struct{}

func NewRuleStore() *RuleStore {
	return &RuleStore{}
}

func scanRule(row pgx.Row) (*access.RulePolicy, error) {
	var (
		p   access.RulePolicy
		raw []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &p.Conditions); err != nil {
		return nil, fmt.Errorf("%w: policy %d: %v", access.ErrMalformedRule, p.ID, err)
	}
	return &p, nil
}

func (s *RuleStore) query(ctx context.Context, q database.Querier, sql string, args ...any) ([]access.RulePolicy, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rule policies: %w", err)
	}
	defer rows.Close()

	policies := []access.RulePolicy{}
	for rows.Next() {
		p, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// List returns every policy ordered by name, then id.
func (s *RuleStore) List(ctx context.Context, q database.Querier) ([]access.RulePolicy, error) {
	return s.query(ctx, q,
		`SELECT id, name, description, conditions FROM rule_policies ORDER BY name, id`)
}

// FindByName returns the policies sharing name, in evaluation order.
func (s *RuleStore) FindByName(ctx context.Context, q database.Querier, name string) ([]access.RulePolicy, error) {
	return s.query(ctx, q,
		`SELECT id, name, description, conditions FROM rule_policies WHERE name = $1 ORDER BY id`, name)
}

// Create validates and stores a policy.
func (s *RuleStore) Create(ctx context.Context, q database.Querier, p access.RulePolicy) (*access.RulePolicy, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, ErrRuleNameRequired
	}
	if err := p.Conditions.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encoding conditions: %w", err)
	}

	created, err := scanRule(q.QueryRow(ctx,
		`INSERT INTO rule_policies (name, description, conditions)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, description, conditions`,
		p.Name, p.Description, raw,
	))
	if err != nil {
		return nil, fmt.Errorf("creating rule policy: %w", err)
	}
	return created, nil
}

func (s *RuleStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM rule_policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting rule policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// seedFile is the layout of a rule seed document.
type seedFile struct {
	Policies []seedPolicy `yaml:"policies"`
}

type seedPolicy struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Conditions  access.Conditions `yaml:"conditions"`
}

// ParseSeed decodes a YAML rule seed document and validates every policy.
func ParseSeed(data []byte) ([]access.RulePolicy, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rule seed: %w", err)
	}

	policies := make([]access.RulePolicy, 0, len(f.Policies))
	for i, sp := range f.Policies {
		if strings.TrimSpace(sp.Name) == "" {
			return nil, fmt.Errorf("policy %d: %w", i, ErrRuleNameRequired)
		}
		if err := sp.Conditions.Validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", sp.Name, err)
		}
		policies = append(policies, access.RulePolicy{
			Name:        sp.Name,
			Description: sp.Description,
			Conditions:  sp.Conditions,
		})
	}
	return policies, nil
}

// SeedFromFile replaces every stored policy with those in the YAML file at
// path. The swap happens in one transaction.
func (s *RuleStore) SeedFromFile(ctx context.Context, pool *database.Pool, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading rule seed: %w", err)
	}
	policies, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}

	err = database.WithTx(ctx, pool, func(ctx context.Context, q database.Querier) error {
		if _, err := q.Exec(ctx, `DELETE FROM rule_policies`); err != nil {
			return fmt.Errorf("clearing rule policies: %w", err)
		}
		for _, p := range policies {
			if _, err := s.Create(ctx, q, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(policies), nil
}
