package monitor

// utilWindow — скользящее окно замеров утилизации фиксированного размера.
type utilWindow struct {
	cpu    []float64
	memory []int64
	size   int
	next   int
	count  int
}

func newUtilWindow(size int) *utilWindow {
	return &utilWindow{
		cpu:    make([]float64, size),
		memory: make([]int64, size),
		size:   size,
	}
}

// Push добавляет замер, вытесняя самый старый при переполнении.
func (w *utilWindow) Push(cpuPercent float64, memoryMB int64) {
	w.cpu[w.next] = cpuPercent
	w.memory[w.next] = memoryMB
	w.next = (w.next + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

// Last возвращает последний замер.
func (w *utilWindow) Last() (float64, int64) {
	if w.count == 0 {
		return 0, 0
	}
	i := (w.next - 1 + w.size) % w.size
	return w.cpu[i], w.memory[i]
}

// AvgCPU возвращает среднюю загрузку CPU по окну.
func (w *utilWindow) AvgCPU() float64 {
	if w.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.count; i++ {
		sum += w.cpu[i]
	}
	return sum / float64(w.count)
}

// Count возвращает количество замеров в окне.
func (w *utilWindow) Count() int {
	return w.count
}

// logRing — кольцевой буфер последних строк лога.
type logRing struct {
	lines []string
	size  int
	next  int
	count int
}

func newLogRing(size int) *logRing {
	return &logRing{lines: make([]string, size), size: size}
}

// Append добавляет строки, вытесняя самые старые при переполнении.
func (r *logRing) Append(lines ...string) {
	for _, line := range lines {
		r.lines[r.next] = line
		r.next = (r.next + 1) % r.size
		if r.count < r.size {
			r.count++
		}
	}
}

// Tail возвращает последние n строк в хронологическом порядке.
// n <= 0 — все накопленные строки.
func (r *logRing) Tail(n int) []string {
	if n <= 0 || n > r.count {
		n = r.count
	}
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	start := (r.next - n + r.size) % r.size
	for i := 0; i < n; i++ {
		out[i] = r.lines[(start+i)%r.size]
	}
	return out
}
