package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

var errInterrupted = errors.New("interrupted")

// readPasswordWithMask reads a password and echoes asterisks.
func readPasswordWithMask(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Println()
		return trimNewline(line), nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Fall back to hidden input.
		password, rerr := term.ReadPassword(fd)
		fmt.Println()
		return string(password), rerr
	}
	defer term.Restore(fd, oldState)

	var password []byte
	reader := bufio.NewReader(os.Stdin)

	for {
		char, _, err := reader.ReadRune()
		if err != nil {
			break
		}

		switch char {
		case '\n', '\r':
			fmt.Print("\r\n")
			return string(password), nil
		case 127, 8:
			if len(password) > 0 {
				password = password[:len(password)-1]
				fmt.Print("\b \b")
			}
		case 3: // Ctrl+C
			fmt.Print("\r\n")
			return "", errInterrupted
		default:
			if char >= 32 && char <= 126 {
				password = append(password, byte(char))
				fmt.Print("*")
			}
		}
	}

	fmt.Print("\r\n")
	return string(password), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
