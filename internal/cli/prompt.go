package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/jvs-project/epubpack/pkg/errclass"
)

// promptResolver asks the user for an output directory. It only asks when
// in is a terminal; otherwise there is nobody to answer.
type promptResolver struct {
	in  *os.File
	out io.Writer
}

func (p *promptResolver) Resolve(ctx context.Context) (string, error) {
	if p.in == nil || !term.IsTerminal(int(p.in.Fd())) {
		return "", errclass.ErrPermission.WithMessage("no output directory configured; pass --output-dir")
	}
	cwd, _ := os.Getwd()
	fmt.Fprintf(p.out, "Output directory [%s]: ", cwd)

	line := make(chan string, 1)
	go func() {
		s, _ := bufio.NewReader(p.in).ReadString('\n')
		line <- s
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case s := <-line:
		return answerDir(s, cwd)
	}
}

// answerDir turns a prompt answer into a directory. An empty answer picks
// def; "~/" is expanded.
func answerDir(answer, def string) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = def
	}
	if answer == "" {
		return "", errclass.ErrPermission.WithMessage("no output directory given")
	}
	if rest, ok := strings.CutPrefix(answer, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errclass.ErrPermission.WithMessagef("expand %s: %v", answer, err)
		}
		answer = filepath.Join(home, rest)
	}
	return filepath.Abs(answer)
}
