// SPDX-License-Identifier: MPL-2.0

package service

import (
	"context"

	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

// selectSession picks the session a resolution or execution runs in. An
// explicit id wins; the most-recent strategy reuses the last touched
// session; anything else creates a new session. The selected session
// becomes the most recent one and a given project is loaded into it.
func (s *Service) selectSession(ctx context.Context, id string, strategy runnerv1.SessionStrategy, project *runnerv1.Project) (string, error) {
	var (
		sess session.Session
		err  error
	)
	switch {
	case id != "":
		sess, err = s.store.Get(id)
	case strategy == runnerv1.SessionStrategyMostRecent:
		var ok bool
		if sess, ok = s.store.MostRecent(); !ok {
			sess, err = s.store.Create(ctx, session.CreateOptions{})
		}
	default:
		sess, err = s.store.Create(ctx, session.CreateOptions{})
	}
	if err != nil {
		return "", err
	}
	s.store.Touch(sess.ID)

	if p := fromProject(project); p != nil {
		if err := s.store.LoadProject(ctx, sess.ID, p); err != nil {
			return "", err
		}
		s.watchProject(sess.ID, p)
	}
	return sess.ID, nil
}
