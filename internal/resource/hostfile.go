package resource

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shaiso/Conductor/internal/domain"
)

// Ёмкости по умолчанию для узлов из hostfile: файл объявляет только имена,
// реальные ёмкости известны лишь cluster spec'у.
const (
	defaultCores       = 8
	defaultMemoryMB    = 16384
	defaultNetworkMBps = 1000
)

// ParseHostfile разбирает hostfile в список узлов.
//
// Формат MPI-стиля: одно имя узла на строку, опционально "slots=N"
// (трактуется как число ядер). Пустые строки и строки с # игнорируются.
// Повторное имя узла — ошибка.
func ParseHostfile(text string) ([]domain.NodeInfo, error) {
	var nodes []domain.NodeInfo
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		name := fields[0]
		if seen[name] {
			return nil, fmt.Errorf("%w: %s (line %d)", ErrDuplicateNode, name, lineNo)
		}
		seen[name] = true

		node := domain.NodeInfo{
			ID:          len(nodes),
			Name:        name,
			Address:     name,
			Cores:       defaultCores,
			MemoryMB:    defaultMemoryMB,
			NetworkMBps: defaultNetworkMBps,
		}

		for _, field := range fields[1:] {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				return nil, fmt.Errorf("%w: unexpected token %q (line %d)", ErrParse, field, lineNo)
			}
			switch key {
			case "slots":
				n, err := strconv.Atoi(value)
				if err != nil || n < 1 {
					return nil, fmt.Errorf("%w: bad slots value %q (line %d)", ErrParse, value, lineNo)
				}
				node.Cores = n
			case "max_slots", "max-slots":
				// Лимит oversubscription не моделируется
			default:
				return nil, fmt.Errorf("%w: unknown option %q (line %d)", ErrParse, key, lineNo)
			}
		}

		nodes = append(nodes, node)
	}

	if len(nodes) == 0 {
		return nil, ErrEmptyGraph
	}
	return nodes, nil
}

// LoadHostfile читает и разбирает hostfile с диска.
func LoadHostfile(path string) ([]domain.NodeInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hostfile: %w", err)
	}
	return ParseHostfile(string(data))
}
