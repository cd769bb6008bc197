package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/monorkin/home-network-monitor/internal/dashboard"
)

// promptConfirmer asks confirmations on the terminal. Anything but y or yes is a no.
type promptConfirmer struct {
	mutex  sync.Mutex
	reader *bufio.Reader
	out    io.Writer
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{reader: bufio.NewReader(in), out: out}
}

func (prompt *promptConfirmer) Confirm(ctx context.Context, confirmation dashboard.Confirmation) (bool, error) {
	prompt.mutex.Lock()
	defer prompt.mutex.Unlock()

	label := confirmation.ConfirmLabel
	if label == "" {
		label = "Continue"
	}
	fmt.Fprintf(prompt.out, "%s\n%s [y/N] ", confirmation.Message, label+"?")

	answer, err := prompt.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
