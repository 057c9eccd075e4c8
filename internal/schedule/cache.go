package schedule

import (
	"sync"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
)

type viewKey struct {
	month calendar.Month
	typ   string
	today calendar.Date
}

// viewCache holds loaded month views and per-type program lists. Any
// mutation drops everything. Loads that started before an invalidation
// carry the old generation and are not stored.
type viewCache struct {
	mu       sync.RWMutex
	gen      uint64
	months   map[viewKey]MonthView
	programs map[string][]models.MasterProgram
}

func newViewCache() *viewCache {
	return &viewCache{
		months:   make(map[viewKey]MonthView),
		programs: make(map[string][]models.MasterProgram),
	}
}

func (c *viewCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *viewCache) month(k viewKey) (MonthView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.months[k]
	if !ok {
		return MonthView{}, false
	}
	return v.clone(), true
}

func (c *viewCache) putMonth(gen uint64, k viewKey, v MonthView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.months[k] = v.clone()
}

func (c *viewCache) programsOf(maintenanceType string) ([]models.MasterProgram, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[maintenanceType]
	if !ok {
		return nil, false
	}
	return append([]models.MasterProgram(nil), p...), true
}

func (c *viewCache) putPrograms(gen uint64, maintenanceType string, p []models.MasterProgram) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.programs[maintenanceType] = append([]models.MasterProgram(nil), p...)
}

func (c *viewCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.months = make(map[viewKey]MonthView)
	c.programs = make(map[string][]models.MasterProgram)
}
