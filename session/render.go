package session

import (
	"fmt"
	"io"

	"github.com/gookit/color"
)

// Renderer prints server traffic the way the terminal client shows it.
// Colours can be switched off for dumb terminals and tests.
type Renderer struct {
	out     io.Writer
	errOut  io.Writer
	colours bool
}

func NewRenderer(out, errOut io.Writer, colours bool) *Renderer {
	return &Renderer{out: out, errOut: errOut, colours: colours}
}

func (r *Renderer) Prompt() {
	fmt.Fprint(r.out, "> ")
}

func (r *Renderer) Text(room, sender, text string) {
	line := fmt.Sprintf("[%s] %s: %s", room, sender, text)
	if r.colours {
		line = color.Cyan.Sprint(line)
	}
	fmt.Fprintln(r.out, line)
}

func (r *Renderer) Info(text string) {
	line := fmt.Sprintf("[INFO] %s", text)
	if r.colours {
		line = color.Green.Sprint(line)
	}
	fmt.Fprintln(r.out, line)
}

func (r *Renderer) Error(text string) {
	line := fmt.Sprintf("[ERROR] %s", text)
	if r.colours {
		line = color.Red.Sprint(line)
	}
	fmt.Fprintln(r.errOut, line)
}

// Listing prints a multi-line server listing (rooms, users) verbatim.
func (r *Renderer) Listing(text string) {
	fmt.Fprint(r.out, text)
}

func (r *Renderer) Help() {
	fmt.Fprint(r.out, `Comandos disponibles:
  /join <sala>  Unirse o crear una sala
  /leave        Salir de la sala actual
  /list         Listar las salas disponibles
  /users        Listar los usuarios de tu sala
  /quit         Salir del chat
`)
}
