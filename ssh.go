package wsftp

import (
	"golang.org/x/crypto/ssh"
)

// NewClient runs an SFTP session over an established SSH connection: it
// opens a session, wires up the pipes that will back the stream channel,
// starts the sftp subsystem, and hands the pipes to NewClientPipe.  The
// session is torn down if any step fails.
func NewClient(conn *ssh.Client, opts ...ClientOption) (*Client, error) {
	sess, err := conn.NewSession()
	if err != nil {
		return nil, err
	}
	wr, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	rd, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	if err = sess.RequestSubsystem("sftp"); err != nil {
		sess.Close()
		return nil, err
	}
	client, err := NewClientPipe(rd, wr, opts...)
	if err != nil {
		sess.Close()
		return nil, err
	}
	return client, nil
}
