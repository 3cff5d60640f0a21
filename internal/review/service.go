// Package review is the organizer view over all submissions: search, scoring
// and aggregate counts.
package review

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/repohandler/repohandler/internal/project"
)

// Stats summarizes all submissions.
type Stats struct {
	TotalProjects     int
	TeamsWithProjects int
	ProjectsWithPDF   int
	ProjectsScored    int
}

// ScoreResult is the outcome of UpdateScores.
type ScoreResult struct {
	Scores     project.Scores
	TotalScore float64
}

// Service provides admin operations over every project.
type Service struct {
	repo   project.Repository
	logger *zap.Logger
}

// NewService creates a new Service.
func NewService(repo project.Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListAll returns every project, newest submission first. A non-empty search
// keeps projects whose name, team id or email contains it, ignoring case.
func (s *Service) ListAll(ctx context.Context, search string) ([]project.Project, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	result := all
	if search != "" {
		needle := strings.ToLower(search)
		result = make([]project.Project, 0, len(all))
		for _, p := range all {
			if matches(&p, needle) {
				result = append(result, p)
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SubmittedAt.After(result[j].SubmittedAt)
	})
	return result, nil
}

func matches(p *project.Project, needle string) bool {
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.TeamID), needle) ||
		strings.Contains(strings.ToLower(p.Email), needle)
}

// UpdateScores records scores on a project. The total is the unweighted sum
// and no range is enforced.
func (s *Service) UpdateScores(ctx context.Context, id string, scores project.Scores) (*ScoreResult, error) {
	if err := s.repo.SetScores(ctx, id, scores); err != nil {
		return nil, err
	}

	total := scores.Total()
	s.logger.Info("project scored", zap.String("projectId", id), zap.Float64("totalScore", total))
	return &ScoreResult{Scores: scores, TotalScore: total}, nil
}

// Stats counts projects, distinct submitting teams, attachments and scored
// projects.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	teams := make(map[string]struct{}, len(all))
	st := &Stats{TotalProjects: len(all)}
	for _, p := range all {
		teams[p.TeamID] = struct{}{}
		if p.HasPDF() {
			st.ProjectsWithPDF++
		}
		if p.Scores != nil {
			st.ProjectsScored++
		}
	}
	st.TeamsWithProjects = len(teams)
	return st, nil
}
