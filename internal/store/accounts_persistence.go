package store

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"orderdesk/internal/model"
)

type persistedAccountsFile struct {
	Version  int             `json:"version"`
	Accounts []model.Account `json:"accounts"`
	SavedAt  int64           `json:"savedAt"`
}

func (s *Store) loadAccountsFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedAccountsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported accounts state version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range file.Accounts {
		if acc.ID == "" || acc.Email == "" {
			continue
		}
		s.accountsByEmail[acc.Email] = acc
	}
	return nil
}

func (s *Store) snapshotAccountsLocked() []model.Account {
	result := make([]model.Account, 0, len(s.accountsByEmail))
	for _, acc := range s.accountsByEmail {
		result = append(result, acc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result
}

func (s *Store) persistAccountsSnapshot(accounts []model.Account) {
	path := s.accountsStateFile
	if path == "" {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Printf("accounts persistence: mkdir failed (%s): %v", dir, err)
		return
	}

	file := persistedAccountsFile{Version: 1, Accounts: accounts, SavedAt: time.Now().UnixMilli()}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		log.Printf("accounts persistence: marshal failed: %v", err)
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		log.Printf("accounts persistence: create temp failed: %v", err)
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		log.Printf("accounts persistence: chmod temp failed: %v", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		log.Printf("accounts persistence: write temp failed: %v", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		log.Printf("accounts persistence: sync temp failed: %v", err)
		return
	}
	if err := tmp.Close(); err != nil {
		log.Printf("accounts persistence: close temp failed: %v", err)
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		log.Printf("accounts persistence: rename failed: %v", err)
		return
	}
}
