package flatfile

import (
	"context"
	"sort"

	"quizbench/internal/storage"
)

func (s *Store) InsertAsset(_ context.Context, runID, assetType, path string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}

	s.assetsMu.Lock()
	defer s.assetsMu.Unlock()

	return appendLine(s.assetsPath(), storage.Asset{
		RunID:     runID,
		AssetType: assetType,
		Path:      path,
		CreatedAt: now(),
	})
}

func (s *Store) FetchAssets(_ context.Context, runID string) ([]storage.Asset, error) {
	if err := storage.CheckID(runID); err != nil {
		return nil, err
	}

	s.assetsMu.Lock()
	assets, err := readLines[storage.Asset](s.assetsPath())
	s.assetsMu.Unlock()
	if err != nil {
		return nil, err
	}

	matched := make([]storage.Asset, 0)
	for _, asset := range assets {
		if asset.RunID == runID {
			matched = append(matched, asset)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func (s *Store) DeleteAssetsForRun(_ context.Context, runID string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}

	s.assetsMu.Lock()
	defer s.assetsMu.Unlock()

	assets, err := readLines[storage.Asset](s.assetsPath())
	if err != nil {
		return err
	}
	kept := assets[:0]
	for _, asset := range assets {
		if asset.RunID != runID {
			kept = append(kept, asset)
		}
	}
	return writeLines(s.assetsPath(), kept)
}
