package mem

import (
	"fmt"
	"sort"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
)

// region is a reserved device number range.
type region struct {
	name  string
	count int
}

// Region describes a reserved range for inspection.
type Region struct {
	Name  string
	Base  env.DevNum
	Count int
}

// dynamicMajors returns the default search order for dynamic majors.
func dynamicMajors() []uint32 {
	majors := make([]uint32, 0, 21+128)
	for m := uint32(254); m >= 234; m-- {
		majors = append(majors, m)
	}
	for m := uint32(511); m >= 384; m-- {
		majors = append(majors, m)
	}
	return majors
}

// ReserveRange reserves count minors under the first free dynamic major.
func (e *Env) ReserveRange(count int, name string) (env.DevNum, error) {
	if count <= 0 {
		return 0, fmt.Errorf("reserve %d numbers: %w", count, pkg.ErrInvalidParameter)
	}
	if count > env.MinorMask+1 {
		return 0, fmt.Errorf("reserve %d numbers: %w", count, pkg.ErrResourceExhausted)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	for _, major := range e.majors {
		if _, used := e.regions[major]; used {
			continue
		}
		e.regions[major] = region{name: name, count: count}
		base := env.Mkdev(major, 0)
		pkg.LogDebug(pkg.ComponentEnv, "number range reserved",
			"name", name,
			"base", base.String(),
			"count", count)
		return base, nil
	}

	return 0, fmt.Errorf("reserve %d numbers for %q: no free major: %w",
		count, name, pkg.ErrResourceExhausted)
}

// ReleaseRange releases the region starting at base.
func (e *Env) ReleaseRange(base env.DevNum, count int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	r, ok := e.regions[base.Major()]
	if !ok || r.count != count {
		pkg.LogWarn(pkg.ComponentEnv, "release of unknown number range",
			"base", base.String(),
			"count", count)
		return
	}
	delete(e.regions, base.Major())
	pkg.LogDebug(pkg.ComponentEnv, "number range released",
		"name", r.name,
		"base", base.String())
}

// Regions returns the reserved ranges ordered by major.
func (e *Env) Regions() []Region {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	result := make([]Region, 0, len(e.regions))
	for major, r := range e.regions {
		result = append(result, Region{
			Name:  r.name,
			Base:  env.Mkdev(major, 0),
			Count: r.count,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Base < result[j].Base })
	return result
}
