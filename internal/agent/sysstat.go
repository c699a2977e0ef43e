package agent

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// cpuSample — суммарные тики CPU из /proc/stat.
type cpuSample struct {
	busy  uint64
	total uint64
}

// readCPUSample читает агрегированную строку "cpu" из /proc/stat.
func readCPUSample() (cpuSample, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return cpuSample{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}

		var sample cpuSample
		for i, field := range fields[1:] {
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return cpuSample{}, fmt.Errorf("parse /proc/stat field %q: %w", field, err)
			}
			sample.total += v
			// idle (4-е поле) и iowait (5-е) не считаются занятостью
			if i != 3 && i != 4 {
				sample.busy += v
			}
		}
		return sample, nil
	}
	return cpuSample{}, fmt.Errorf("no cpu line in /proc/stat")
}

// cpuPercent считает загрузку CPU между двумя сэмплами.
func cpuPercent(prev, cur cpuSample) float64 {
	dTotal := cur.total - prev.total
	if cur.total <= prev.total {
		return 0
	}
	dBusy := cur.busy - prev.busy
	return 100 * float64(dBusy) / float64(dTotal)
}

// readMemoryUsedMB возвращает занятую память узла в мегабайтах
// (MemTotal - MemAvailable из /proc/meminfo).
func readMemoryUsedMB() (int64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var totalKB, availableKB int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			totalKB, _ = strconv.ParseInt(fields[1], 10, 64)
		case "MemAvailable:":
			availableKB, _ = strconv.ParseInt(fields[1], 10, 64)
		}
	}

	if totalKB == 0 {
		return 0, fmt.Errorf("no MemTotal in /proc/meminfo")
	}
	return (totalKB - availableKB) / 1024, nil
}
