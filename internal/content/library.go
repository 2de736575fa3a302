// Package content holds the truth, dare and pledge library shipped with the
// service and the YAML format used to author it.
//
// A library is a directory of YAML files, one per category, named after the
// category ("party.yaml"). Each file maps a language code to its content set:
//
//	en:
//	  truths: [...]
//	  dares: [...]
//	  pledges: [...]
package content

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"truth-or-dare-service/internal/domain"
)

//go:embed data/*.yaml
var embedded embed.FS

// Library is a fully loaded content library.
type Library map[domain.ContentKey]domain.ContentSet

// Embedded returns the library compiled into the binary.
func Embedded() (Library, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load parses every *.yaml file at the root of fsys.
func Load(fsys fs.FS) (Library, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no content files found")
	}

	lib := make(Library)
	for _, name := range files {
		category, err := domain.ParseCategory(strings.TrimSuffix(path.Base(name), ".yaml"))
		if err != nil {
			return nil, fmt.Errorf("content file %s: %w", name, err)
		}
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		sets, err := parseCategory(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for lang, set := range sets {
			lib[domain.ContentKey{Category: category, Language: lang}] = set
		}
	}
	return lib, nil
}

func parseCategory(raw []byte) (map[domain.Language]domain.ContentSet, error) {
	var doc map[string]domain.ContentSet
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[domain.Language]domain.ContentSet, len(doc))
	for code, set := range doc {
		lang, err := domain.ParseLanguage(code)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", code, err)
		}
		out[lang] = domain.ContentSet{
			Truths:  clean(set.Truths),
			Dares:   clean(set.Dares),
			Pledges: clean(set.Pledges),
		}
	}
	return out, nil
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadContent implements memory.ContentLoader.
func (l Library) LoadContent(_ context.Context, category domain.Category, lang domain.Language) (domain.ContentSet, error) {
	set, ok := l[domain.ContentKey{Category: category, Language: lang}]
	if !ok {
		return domain.ContentSet{}, domain.ErrContentNotFound
	}
	return set, nil
}

// Keys returns the library keys in a stable order.
func (l Library) Keys() []domain.ContentKey {
	keys := make([]domain.ContentKey, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
