package ingest

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"

	"heimwetter/internal/rawfiles"
)

// ExportSync pulls monthly CSV exports from the logger's FTP share into
// the raw directory. The logger rewrites the current month's file in
// place, so size changes mean a re-download.
type ExportSync struct {
	host      string // "host:port"
	user      string
	password  string
	remoteDir string
	rawDir    string
}

func NewExportSync(host, user, password, remoteDir, rawDir string) *ExportSync {
	if user == "" {
		user = "anonymous"
		password = "anonymous"
	}
	return &ExportSync{
		host:      host,
		user:      user,
		password:  password,
		remoteDir: remoteDir,
		rawDir:    rawDir,
	}
}

// Sync downloads every export that is new or has grown since the last
// run. Returns the number of files written.
func (s *ExportSync) Sync() (int, error) {
	conn, err := ftp.Dial(s.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return 0, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.user, s.password); err != nil {
		return 0, fmt.Errorf("ftp login: %w", err)
	}

	entries, err := conn.List(s.remoteDir)
	if err != nil {
		return 0, fmt.Errorf("ftp list %s: %w", s.remoteDir, err)
	}

	if err := os.MkdirAll(s.rawDir, 0o755); err != nil {
		return 0, err
	}

	downloaded := 0
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		if _, ok := rawfiles.Match(e.Name); !ok {
			continue
		}
		local := filepath.Join(s.rawDir, e.Name)
		if st, err := os.Stat(local); err == nil && st.Size() == int64(e.Size) {
			continue
		}
		if err := s.download(conn, e.Name, local); err != nil {
			log.Printf("ftpsync: %s: %v", e.Name, err)
			continue
		}
		downloaded++
	}
	return downloaded, nil
}

func (s *ExportSync) download(conn *ftp.ServerConn, name, local string) error {
	resp, err := conn.Retr(s.remoteDir + "/" + name)
	if err != nil {
		return fmt.Errorf("retr: %w", err)
	}
	defer resp.Close()

	tmp, err := os.CreateTemp(s.rawDir, name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp); err != nil {
		tmp.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), local)
}
