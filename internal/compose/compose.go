package compose

import (
	"fmt"
	"slices"

	"github.com/shaiso/Conductor/internal/domain"
)

// InsertPackage вставляет вхождение пакета в pipeline.
// position < 0 — добавить в конец. После вставки порядок переиндексируется.
func InsertPackage(p *domain.Pipeline, entry domain.PackageEntry, position int) error {
	if p.FindPackage(entry.Name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicatePackage, entry.Name)
	}

	if position < 0 || position >= len(p.Packages) {
		if position >= 0 && position > len(p.Packages) {
			return fmt.Errorf("%w: %d (have %d packages)", ErrPosition, position, len(p.Packages))
		}
		p.Packages = append(p.Packages, entry)
	} else {
		p.Packages = slices.Insert(p.Packages, position, entry)
	}

	p.Resequence()
	if p.Status == domain.PipelineStatusCreated {
		p.Status = domain.PipelineStatusConfigured
	}
	return nil
}

// RemovePackage удаляет пакет по имени и закрывает пропуск в индексах:
// удаление элемента с индексом 1 из трёх оставляет индексы 0 и 1, а не 0 и 2.
func RemovePackage(p *domain.Pipeline, name string) error {
	idx := -1
	for i := range p.Packages {
		if p.Packages[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: package %s", ErrNotFound, name)
	}

	p.Packages = slices.Delete(p.Packages, idx, idx+1)
	p.Resequence()
	if len(p.Packages) == 0 {
		p.Status = domain.PipelineStatusCreated
	}
	return nil
}

// Reorder переставляет пакеты согласно newOrder.
//
// newOrder обязан быть перестановкой текущих имён, а относительный
// порядок interceptor'ов — сохраниться: их порядок кодирует цепочку
// LD_PRELOAD и не переставляется независимо.
func Reorder(p *domain.Pipeline, newOrder []string) error {
	if err := checkPermutation(p, newOrder); err != nil {
		return err
	}
	if err := checkInterceptorChain(p, newOrder); err != nil {
		return err
	}

	byName := make(map[string]domain.PackageEntry, len(p.Packages))
	for _, e := range p.Packages {
		byName[e.Name] = e
	}

	reordered := make([]domain.PackageEntry, len(newOrder))
	for i, name := range newOrder {
		reordered[i] = byName[name]
	}
	p.Packages = reordered
	p.Resequence()
	return nil
}

// checkPermutation проверяет, что newOrder — перестановка текущих имён.
func checkPermutation(p *domain.Pipeline, newOrder []string) error {
	if len(newOrder) != len(p.Packages) {
		return fmt.Errorf("%w: got %d names, pipeline has %d packages",
			ErrOrderConstraint, len(newOrder), len(p.Packages))
	}

	seen := make(map[string]bool, len(newOrder))
	for _, name := range newOrder {
		if seen[name] {
			return fmt.Errorf("%w: duplicate name %s", ErrOrderConstraint, name)
		}
		seen[name] = true
		if p.FindPackage(name) == nil {
			return fmt.Errorf("%w: %s not in pipeline", ErrOrderConstraint, name)
		}
	}
	return nil
}

// checkInterceptorChain проверяет сохранение относительного порядка interceptor'ов.
func checkInterceptorChain(p *domain.Pipeline, newOrder []string) error {
	var current []string
	for _, e := range p.Packages {
		if e.Type == domain.PackageTypeInterceptor {
			current = append(current, e.Name)
		}
	}

	isInterceptor := make(map[string]bool, len(current))
	for _, name := range current {
		isInterceptor[name] = true
	}

	var proposed []string
	for _, name := range newOrder {
		if isInterceptor[name] {
			proposed = append(proposed, name)
		}
	}

	if !slices.Equal(current, proposed) {
		return fmt.Errorf("%w: interceptor preload chain %v reordered to %v",
			ErrOrderConstraint, current, proposed)
	}
	return nil
}
