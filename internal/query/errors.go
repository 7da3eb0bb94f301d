package query

import (
	"strconv"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
)

func errInvalidTimeRange(raw string) error {
	return ierr.New(ierr.InvalidQueryParameters, "time_range must be two UTC dates separated by '..' (YYYY-MM-DD..YYYY-MM-DD)", nil).
		WithDetail("time_range", raw)
}

func errInvalidEvolutionLimit(n int) error {
	return ierr.New(ierr.InvalidQueryParameters, "evolution_limit must be a positive integer", nil).
		WithDetail("evolution_limit", strconv.Itoa(n))
}

func errEvolutionWithoutShowEvolution() error {
	return ierr.New(ierr.InvalidQueryParameters, "evolution_limit requires show_evolution to be set", nil)
}
