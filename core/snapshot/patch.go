package snapshot

import (
	"context"

	"minisite/core/project"
	"minisite/model"

	"go.uber.org/zap"
)

// PatchSection reads the latest snapshot, deep-merges patch into one section and master-saves
// the whole project.
//
// There is no version check between the read and the write. A save for the same project that
// lands in between is overwritten by this one: last writer wins.
func (s *Service) PatchSection(ctx context.Context, projectID string, section model.Section, patch map[string]interface{}) (*SaveResult, error) {
	next, ignored, err := s.preparePatch(ctx, projectID, section, patch)
	if err != nil {
		return nil, err
	}
	if len(ignored) > 0 {
		s.log.Warn("patch touched locked values",
			zap.String("projectId", projectID),
			zap.String("section", string(section)),
			zap.Strings("ignored", ignored))
	}

	res, err := s.write(ctx, projectID, next, section, true)
	if res != nil {
		res.IgnoredLocked = ignored
	}
	return res, err
}

// preparePatch is the read-and-merge half of PatchSection.
func (s *Service) preparePatch(ctx context.Context, projectID string, section model.Section, patch map[string]interface{}) (*model.Project, []string, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, nil, err
	}
	if _, err := model.ParseSection(string(section)); err != nil {
		return nil, nil, ErrInvalidRequest.Wrap(err)
	}

	latest, err := s.GetLatest(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	var base *model.Project
	if latest != nil {
		base = latest.Snapshot.Project
	} else {
		base = project.NewSkeleton(projectID, s.SongCount(), s.clock())
	}

	doc, err := project.ToMap(base)
	if err != nil {
		return nil, nil, project.ErrInvalidDocument.Wrap(err)
	}
	current, _ := doc[string(section)].(map[string]interface{})
	doc[string(section)] = project.DeepMerge(current, patch)

	next, err := project.FromMap(doc)
	if err != nil {
		return nil, nil, err
	}
	if err := project.Normalize(next, s.SongCount()); err != nil {
		return nil, nil, err
	}
	return next, project.EnforceLocks(base, next), nil
}
