package extract

import "github.com/sss97133/nuke-sub008/internal/logger"

// strategy is one named pattern attempt for a field. fn reports ok only
// when the match also passed the field's validity gate, so the runner can
// stop at the first hit.
type strategy[T any] struct {
	name string
	fn   func(p *page) (T, bool)
}

// runChain tries strategies in order and returns the first accepted value.
// The order of the slice is the fallback contract for the field.
func runChain[T any](log logger.Logger, p *page, field string, chain []strategy[T]) (T, bool) {
	for _, s := range chain {
		if v, ok := s.fn(p); ok {
			log.Debug("extraction strategy hit",
				logger.String("field", field),
				logger.String("strategy", s.name),
			)
			return v, true
		}
	}
	log.Debug("no extraction strategy matched", logger.String("field", field))
	var zero T
	return zero, false
}
