// internal/wallet/prompt.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// Prompter abstracts the interactive prompts used by PromptAgent.
type Prompter interface {
	// Confirm asks a yes/no question. A "no" answer returns promptui.ErrAbort.
	Confirm(label string) error

	// InputText prompts for a line of text.
	InputText(label string) (string, error)
}

// PrompterAdapter implements Prompter using promptui.
type PrompterAdapter struct{}

// Confirm implements Prompter.Confirm.
func (PrompterAdapter) Confirm(label string) error {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err
}

// InputText implements Prompter.InputText.
func (PrompterAdapter) InputText(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("signed envelope is required")
			}
			return nil
		},
	}
	return prompt.Run()
}

// PromptAgent asks the operator at the terminal to sign with an external wallet
// and paste the signed envelope back.
type PromptAgent struct {
	prompter   Prompter
	out        io.Writer
	isTerminal func() bool
}

// NewPromptAgent creates a terminal signing agent writing to out.
func NewPromptAgent(prompter Prompter, out io.Writer) *PromptAgent {
	if prompter == nil {
		prompter = PrompterAdapter{}
	}
	if out == nil {
		out = os.Stderr
	}
	return &PromptAgent{
		prompter: prompter,
		out:      out,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// SignEnvelope shows the envelope, asks for confirmation, and reads the signed envelope.
func (a *PromptAgent) SignEnvelope(ctx context.Context, unsignedEnvelope string, opts SignOptions) (Response, error) {
	if !a.isTerminal() {
		return Response{}, fmt.Errorf("interactive signing requires a terminal")
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	fmt.Fprintf(a.out, "Network passphrase: %s\n", opts.NetworkPassphrase)
	if opts.Address != "" {
		fmt.Fprintf(a.out, "Signer: %s\n", opts.Address)
	}
	fmt.Fprintf(a.out, "Unsigned envelope:\n%s\n\n", unsignedEnvelope)

	if err := a.prompter.Confirm("Sign this transaction"); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return ErrorResponse("user declined the signing request"), nil
		}
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return ErrorResponse("signing cancelled by user"), nil
		}
		return Response{}, err
	}

	signed, err := a.prompter.InputText("Signed envelope")
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return ErrorResponse("signing cancelled by user"), nil
		}
		return Response{}, err
	}
	return TextResponse(strings.TrimSpace(signed)), nil
}
