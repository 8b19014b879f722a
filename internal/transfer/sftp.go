package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConfig holds the remote endpoint and credentials. One of Password or
// KeyFile must be set.
type SFTPConfig struct {
	Addr        string
	User        string
	Password    string
	KeyFile     string
	RemoteDir   string
	DialTimeout time.Duration
	// HostKeyCallback defaults to InsecureIgnoreHostKey when nil, matching
	// the usual trusted-network deployment of this endpoint.
	HostKeyCallback ssh.HostKeyCallback
}

// SFTPRemote uploads artifacts over SFTP. Each upload opens its own
// connection; workers share no session state.
type SFTPRemote struct {
	cfg    SFTPConfig
	logger *slog.Logger
}

func NewSFTPRemote(cfg SFTPConfig, logger *slog.Logger) (*SFTPRemote, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" || cfg.User == "" {
		return nil, fmt.Errorf("sftp addr and user are required")
	}
	if cfg.Password == "" && cfg.KeyFile == "" {
		return nil, fmt.Errorf("sftp password or key file is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	return &SFTPRemote{cfg: cfg, logger: logger}, nil
}

func (r *SFTPRemote) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if r.cfg.KeyFile != "" {
		key, err := os.ReadFile(r.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if r.cfg.Password != "" {
		methods = append(methods, ssh.Password(r.cfg.Password))
	}
	return methods, nil
}

func (r *SFTPRemote) Upload(ctx context.Context, localPath, remoteName string) error {
	methods, err := r.authMethods()
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: r.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dial sftp endpoint: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, r.cfg.Addr, &ssh.ClientConfig{
		User:            r.cfg.User,
		Auth:            methods,
		HostKeyCallback: r.cfg.HostKeyCallback,
		Timeout:         r.cfg.DialTimeout,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("open sftp session: %w", err)
	}
	defer sc.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	remotePath := path.Join(r.cfg.RemoteDir, remoteName)
	dst, err := sc.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write remote file %s: %w", remotePath, err)
	}

	r.logger.Info("transferred artifact", "remote_path", remotePath, "bytes", n)
	return nil
}
