// store/seed.go
package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"campus-referral-engine/models"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk allow-list format:
//
//	campuses:
//	  - name: IIT Bombay
//	    id: iitb            # optional, defaults to a slug of name
//	    domains: [iitb.ac.in]
type SeedFile struct {
	Campuses []SeedCampus `yaml:"campuses"`
}

type SeedCampus struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Domains []string `yaml:"domains"`
}

// ParseSeed validates a seed document and flattens it into allow-list rows.
func ParseSeed(data []byte) ([]models.AllowedDomain, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse allow-list seed: %w", err)
	}

	// Casers keep state, so each parse gets its own.
	lowerDomain := cases.Lower(language.Und)
	titleName := cases.Title(language.English)

	var rows []models.AllowedDomain
	owner := make(map[string]string)
	for i, c := range f.Campuses {
		name := strings.Join(strings.Fields(c.Name), " ")
		if name == "" {
			return nil, fmt.Errorf("campus %d: name is required", i)
		}
		if name == strings.ToLower(name) {
			name = titleName.String(name)
		}
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = slug.Make(name)
		}
		if len(c.Domains) == 0 {
			return nil, fmt.Errorf("campus %q: at least one domain is required", name)
		}
		for _, d := range c.Domains {
			domain := lowerDomain.String(strings.TrimPrefix(strings.TrimSpace(d), "@"))
			if domain == "" || strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
				return nil, fmt.Errorf("campus %q: invalid domain %q", name, d)
			}
			if prev, dup := owner[domain]; dup {
				if prev == id {
					continue
				}
				return nil, fmt.Errorf("domain %q listed for both %q and %q", domain, prev, id)
			}
			owner[domain] = id
			rows = append(rows, models.AllowedDomain{Domain: domain, CampusID: id, CampusName: name})
		}
	}
	return rows, nil
}

// SeedAllowList loads path and upserts its rows. It returns the number of domains written.
func (s *Store) SeedAllowList(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read allow-list seed: %w", err)
	}
	rows, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	if err := s.UpsertAllowedDomains(ctx, rows); err != nil {
		return 0, fmt.Errorf("write allow-list seed: %w", err)
	}
	return len(rows), nil
}
