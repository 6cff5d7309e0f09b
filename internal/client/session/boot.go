package session

import (
	"context"

	"go.uber.org/zap"
)

// Boot hydrates the store and then checks the session with the server. It
// runs once per store; later calls wait for and return the first result.
func Boot(ctx context.Context, s *Store, fetcher ProfileFetcher) error {
	s.bootOnce.Do(func() {
		if err := s.Hydrate(); err != nil {
			s.log.Warn("session hydration failed", zap.Error(err))
		}
		s.bootErr = s.CheckAuth(ctx, fetcher)
	})
	return s.bootErr
}
