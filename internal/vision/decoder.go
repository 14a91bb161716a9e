package vision

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"linefollower_go/internal/models"
	"linefollower_go/pkg/logger"
)

// frameTag identifica o bloco de vetores na resposta do sensor
const frameTag = "LINE"

// ErrMalformedFrame indica uma resposta que não segue o formato LINE
var ErrMalformedFrame = errors.New("quadro de linha malformado")

// DecodeLineFrame decodifica um quadro ASCII "LINE <n> x0 y0 x1 y1 ...".
// Apenas o primeiro vetor é usado. found é false quando n == 0.
// Caracteres de controle (STX/ETX, CR) são ignorados.
func DecodeLineFrame(response string) (models.LineSegment, bool, error) {
	var seg models.LineSegment

	if len(response) == 0 {
		return seg, false, fmt.Errorf("%w: resposta vazia", ErrMalformedFrame)
	}

	if logger.IsDebugEnabled() {
		logger.Debugf("Resposta do sensor: %q", response)
	}

	cleaned := strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return ' '
		}
		return r
	}, response)
	tokens := strings.Fields(cleaned)

	idx := -1
	for i, token := range tokens {
		if token == frameTag {
			idx = i
			break
		}
	}
	if idx == -1 || idx+1 >= len(tokens) {
		return seg, false, fmt.Errorf("%w: bloco %s não encontrado", ErrMalformedFrame, frameTag)
	}

	count, err := strconv.Atoi(tokens[idx+1])
	if err != nil || count < 0 {
		return seg, false, fmt.Errorf("%w: contador de vetores inválido %q", ErrMalformedFrame, tokens[idx+1])
	}
	if count == 0 {
		return seg, false, nil
	}

	coords := tokens[idx+2:]
	if len(coords) < 4 {
		return seg, false, fmt.Errorf("%w: esperado 4 coordenadas, recebido %d", ErrMalformedFrame, len(coords))
	}

	values := make([]int, 4)
	for i := range values {
		v, err := strconv.Atoi(coords[i])
		if err != nil {
			return seg, false, fmt.Errorf("%w: coordenada %q: %v", ErrMalformedFrame, coords[i], err)
		}
		values[i] = v
	}

	if count > 1 {
		logger.Debugf("Sensor reportou %d vetores, usando o primeiro", count)
	}

	seg = models.LineSegment{X0: values[0], Y0: values[1], X1: values[2], Y1: values[3]}
	return seg, true, nil
}

// EncodeLineFrame gera o quadro ASCII para um segmento (ou "LINE 0" sem linha)
func EncodeLineFrame(seg models.LineSegment, found bool) string {
	if !found {
		return frameTag + " 0"
	}
	return fmt.Sprintf("%s 1 %d %d %d %d", frameTag, seg.X0, seg.Y0, seg.X1, seg.Y1)
}
