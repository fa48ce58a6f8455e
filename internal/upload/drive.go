// Package upload pushes exported artifacts to Google Drive. The uploader is
// optional: without credentials the service runs fine and export stays
// local-only.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"storybook/internal/infra"
)

// TokenSource hands out the serialized OAuth token, typically the
// credentials Store.
type TokenSource interface {
	DriveToken(ctx context.Context) (string, error)
}

type Options struct {
	// CredentialsFile is the OAuth client secret JSON downloaded from the
	// Google console.
	CredentialsFile string
	Tokens          TokenSource
	Logger          infra.Logger
}

type DriveUploader struct {
	opts Options
}

func NewDriveUploader(opts Options) *DriveUploader {
	return &DriveUploader{opts: opts}
}

// IsConnected reports whether both halves of the OAuth handshake are in
// place: a client secret file and a stored user token.
func (u *DriveUploader) IsConnected(ctx context.Context) bool {
	if u.opts.CredentialsFile == "" || u.opts.Tokens == nil {
		return false
	}
	if _, err := os.Stat(u.opts.CredentialsFile); err != nil {
		return false
	}
	token, err := u.opts.Tokens.DriveToken(ctx)
	return err == nil && token != ""
}

// Upload streams r to Drive under name and returns the file's web link.
func (u *DriveUploader) Upload(ctx context.Context, name, mimeType string, r io.Reader) (string, error) {
	svc, err := u.service(ctx)
	if err != nil {
		return "", err
	}

	file := &drive.File{Name: name, MimeType: mimeType}
	created, err := svc.Files.Create(file).
		Media(r).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload %s: %w", name, err)
	}

	u.opts.Logger.Info().
		Str("name", name).
		Str("file_id", created.Id).
		Msg("uploaded to drive")
	return created.WebViewLink, nil
}

func (u *DriveUploader) service(ctx context.Context) (*drive.Service, error) {
	raw, err := os.ReadFile(u.opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(raw, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}

	serialized, err := u.opts.Tokens.DriveToken(ctx)
	if err != nil {
		return nil, err
	}
	if serialized == "" {
		return nil, fmt.Errorf("drive token missing, connect the account first")
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(serialized), &token); err != nil {
		return nil, fmt.Errorf("decode drive token: %w", err)
	}

	client := conf.Client(ctx, &token)
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return svc, nil
}
