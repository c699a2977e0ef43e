package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PackageEntryResponse — пакет в составе pipeline.
type PackageEntryResponse struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Order  int            `json:"order"`
	Config map[string]any `json:"config,omitempty"`
}

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	Packages        []PackageEntryResponse `json:"packages"`
	EnvironmentName string                 `json:"environment_name,omitempty"`
	Status          string                 `json:"status"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
}

// EnvironmentResponse — окружение из API.
type EnvironmentResponse struct {
	Name              string            `json:"name"`
	Variables         map[string]string `json:"variables,omitempty"`
	Modules           []string          `json:"modules,omitempty"`
	OptimizationFlags []string          `json:"optimization_flags,omitempty"`
	Level             string            `json:"level"`
	MachineSpecific   bool              `json:"machine_specific"`
	BuiltAt           string            `json:"built_at"`
}

// AssignmentResponse — назначение пакетов на узел из плана.
type AssignmentResponse struct {
	NodeID   int      `json:"node_id"`
	NodeName string   `json:"node_name"`
	Address  string   `json:"address"`
	Packages []string `json:"packages"`
}

// PlanResponse — план размещения execution.
type PlanResponse struct {
	PipelineName string               `json:"pipeline_name"`
	GraphVersion int64                `json:"graph_version"`
	Strategy     string               `json:"strategy"`
	Method       MethodConfig         `json:"method"`
	Assignments  []AssignmentResponse `json:"assignments"`
}

// CheckpointRefResponse — ссылка на checkpoint.
type CheckpointRefResponse struct {
	ExecutionID string `json:"execution_id"`
	Seq         int    `json:"seq"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID                string                 `json:"id"`
	PipelineName      string                 `json:"pipeline_name"`
	Status            string                 `json:"status"`
	Plan              *PlanResponse          `json:"plan,omitempty"`
	NodeStates        map[string]string      `json:"node_states,omitempty"`
	ResumeIndex       int                    `json:"resume_index"`
	RestoredFrom      *CheckpointRefResponse `json:"restored_from,omitempty"`
	LastCheckpointSeq int                    `json:"last_checkpoint_seq,omitempty"`
	StartedAt         string                 `json:"started_at,omitempty"`
	FinishedAt        string                 `json:"finished_at,omitempty"`
	Error             string                 `json:"error,omitempty"`
	CreatedAt         string                 `json:"created_at"`
}

// TransitionEventResponse — запись журнала переходов из API.
type TransitionEventResponse struct {
	Seq    int    `json:"seq"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
	At     string `json:"at"`
}

// CheckpointResponse — checkpoint из API.
type CheckpointResponse struct {
	ExecutionID   string            `json:"execution_id"`
	Seq           int               `json:"seq"`
	PackageIndex  int               `json:"package_index"`
	NodeSnapshots map[string]string `json:"node_snapshots,omitempty"`
	Hash          string            `json:"hash"`
	Verified      bool              `json:"verified"`
	CreatedAt     string            `json:"created_at"`
}

// NodeStatusResponse — телеметрия узла из API.
type NodeStatusResponse struct {
	Node         string  `json:"node"`
	CPUPercent   float64 `json:"cpu_percent"`
	MemoryMB     int64   `json:"memory_mb"`
	AvgCPU       float64 `json:"avg_cpu"`
	Samples      int     `json:"samples"`
	LastSeen     string  `json:"last_seen"`
	Unresponsive bool    `json:"unresponsive"`
}

// PhaseDurationResponse — длительность одной фазы execution (наносекунды).
type PhaseDurationResponse struct {
	Status   string `json:"status"`
	Duration int64  `json:"duration"`
}

// AnalysisResponse — сводка по журналу переходов из API.
type AnalysisResponse struct {
	ExecutionID string                  `json:"execution_id"`
	Phases      []PhaseDurationResponse `json:"phases"`
	Total       int64                   `json:"total"`
	Bottleneck  string                  `json:"bottleneck,omitempty"`
}

// PackageDefResponse — пакет каталога из API.
type PackageDefResponse struct {
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Description string           `json:"description,omitempty"`
	Params      []map[string]any `json:"params,omitempty"`
	Provides    []string         `json:"provides,omitempty"`
}

// RelationshipResponse — отношение пары пакетов из API.
type RelationshipResponse struct {
	A           string `json:"package_a"`
	B           string `json:"package_b"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// --- Request types ---

// CreatePipelineRequest — создание pipeline.
type CreatePipelineRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AddPackageRequest — добавление пакета в pipeline.
type AddPackageRequest struct {
	Name     string         `json:"name"`
	Config   map[string]any `json:"config,omitempty"`
	Position *int           `json:"position,omitempty"`
}

// MethodConfig — настройки метода запуска.
type MethodConfig struct {
	Type         string   `json:"type"`
	HostfilePath string   `json:"hostfile_path,omitempty"`
	NodeCount    int      `json:"node_count,omitempty"`
	ProcsPerNode int      `json:"procs_per_node,omitempty"`
	SSHUser      string   `json:"ssh_user,omitempty"`
	SSHPort      int      `json:"ssh_port,omitempty"`
	MPIFlags     []string `json:"mpi_flags,omitempty"`
}

// StartExecutionRequest — запуск execution.
type StartExecutionRequest struct {
	Strategy string       `json:"strategy,omitempty"`
	Method   MethodConfig `json:"method"`
}

// CreateCheckpointRequest — явный checkpoint.
type CreateCheckpointRequest struct {
	PackageIndex  int               `json:"package_index"`
	NodeSnapshots map[string]string `json:"node_snapshots,omitempty"`
}

// RestoreCheckpointRequest — восстановление из checkpoint'а.
type RestoreCheckpointRequest struct {
	Replan bool `json:"replan,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conductor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Catalog ---

// ListCatalogPackages возвращает пакеты каталога.
func (c *Client) ListCatalogPackages() ([]PackageDefResponse, error) {
	var defs []PackageDefResponse
	err := c.list("/api/v1/catalog/packages", nil, &defs)
	return defs, err
}

// GetCatalogPackage возвращает пакет каталога со схемой параметров.
func (c *Client) GetCatalogPackage(name string) (*PackageDefResponse, error) {
	var def PackageDefResponse
	err := c.get("/api/v1/catalog/packages/"+name, &def)
	return &def, err
}

// --- Pipelines ---

// ListPipelines возвращает все pipelines.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// CreatePipeline создаёт пустой pipeline.
func (c *Client) CreatePipeline(name, description string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/v1/pipelines", CreatePipelineRequest{Name: name, Description: description}, &p)
	return &p, err
}

// GetPipeline возвращает pipeline по имени.
func (c *Client) GetPipeline(name string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/pipelines/"+name, &p)
	return &p, err
}

// DeletePipeline удаляет pipeline.
func (c *Client) DeletePipeline(name string) error {
	return c.delete("/api/v1/pipelines/" + name)
}

// AddPackage добавляет пакет в pipeline.
func (c *Client) AddPackage(pipeline string, req AddPackageRequest) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/v1/pipelines/"+pipeline+"/packages", req, &p)
	return &p, err
}

// ConfigurePackage заменяет конфигурацию пакета.
func (c *Client) ConfigurePackage(pipeline, pkg string, config map[string]any) (*PipelineResponse, error) {
	body := map[string]map[string]any{"config": config}
	var p PipelineResponse
	err := c.put("/api/v1/pipelines/"+pipeline+"/packages/"+pkg, body, &p)
	return &p, err
}

// RemovePackage удаляет пакет из pipeline.
func (c *Client) RemovePackage(pipeline, pkg string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.doData(http.MethodDelete, "/api/v1/pipelines/"+pipeline+"/packages/"+pkg, nil, &p)
	return &p, err
}

// ReorderPackages переставляет пакеты pipeline.
func (c *Client) ReorderPackages(pipeline string, order []string) (*PipelineResponse, error) {
	body := map[string][]string{"order": order}
	var p PipelineResponse
	err := c.put("/api/v1/pipelines/"+pipeline+"/packages/order", body, &p)
	return &p, err
}

// LinkEnvironment привязывает окружение к pipeline.
func (c *Client) LinkEnvironment(pipeline, environment string) (*PipelineResponse, error) {
	body := map[string]string{"environment": environment}
	var p PipelineResponse
	err := c.put("/api/v1/pipelines/"+pipeline+"/environment", body, &p)
	return &p, err
}

// AnalyzePipeline возвращает отношения между пакетами pipeline.
func (c *Client) AnalyzePipeline(pipeline string) ([]RelationshipResponse, error) {
	var rels []RelationshipResponse
	err := c.list("/api/v1/pipelines/"+pipeline+"/analysis", nil, &rels)
	return rels, err
}

// ImportPipeline создаёт pipeline из YAML-дескриптора.
func (c *Client) ImportPipeline(descriptor string) (*PipelineResponse, error) {
	body := map[string]string{"descriptor": descriptor}
	var p PipelineResponse
	err := c.post("/api/v1/pipelines/import", body, &p)
	return &p, err
}

// ExportPipeline возвращает YAML-дескриптор pipeline.
func (c *Client) ExportPipeline(pipeline string) (string, error) {
	var resp struct {
		Descriptor string `json:"descriptor"`
	}
	err := c.get("/api/v1/pipelines/"+pipeline+"/export", &resp)
	return resp.Descriptor, err
}

// --- Environments ---

// ListEnvironments возвращает имена окружений.
func (c *Client) ListEnvironments() ([]string, error) {
	var names []string
	err := c.list("/api/v1/environments", nil, &names)
	return names, err
}

// BuildEnvironment собирает окружение под pipeline.
func (c *Client) BuildEnvironment(name, pipeline, level string) (*EnvironmentResponse, error) {
	body := map[string]string{"name": name, "pipeline": pipeline}
	if level != "" {
		body["level"] = level
	}
	var env EnvironmentResponse
	err := c.post("/api/v1/environments", body, &env)
	return &env, err
}

// GetEnvironment возвращает окружение по имени.
func (c *Client) GetEnvironment(name string) (*EnvironmentResponse, error) {
	var env EnvironmentResponse
	err := c.get("/api/v1/environments/"+name, &env)
	return &env, err
}

// CopyEnvironment создаёт независимую копию окружения.
func (c *Client) CopyEnvironment(src, dst string) (*EnvironmentResponse, error) {
	body := map[string]string{"target": dst}
	var env EnvironmentResponse
	err := c.post("/api/v1/environments/"+src+"/copy", body, &env)
	return &env, err
}

// ConfigureEnvironment задаёт или переопределяет переменные окружения.
func (c *Client) ConfigureEnvironment(name string, vars map[string]string) (*EnvironmentResponse, error) {
	body := map[string]map[string]string{"variables": vars}
	var env EnvironmentResponse
	err := c.put("/api/v1/environments/"+name+"/variables", body, &env)
	return &env, err
}

// DeleteEnvironment удаляет окружение.
func (c *Client) DeleteEnvironment(name string) error {
	return c.delete("/api/v1/environments/" + name)
}

// --- Executions ---

// StartExecution запускает execution pipeline.
func (c *Client) StartExecution(pipeline string, req StartExecutionRequest) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.post("/api/v1/pipelines/"+pipeline+"/executions", req, &exec)
	return &exec, err
}

// ListExecutions возвращает executions с фильтрацией по pipeline.
func (c *Client) ListExecutions(pipeline string, limit int) ([]ExecutionResponse, error) {
	params := url.Values{}
	if pipeline != "" {
		params.Set("pipeline", pipeline)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var execs []ExecutionResponse
	err := c.list("/api/v1/executions", params, &execs)
	return execs, err
}

// GetExecution возвращает execution по ID.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &exec)
	return &exec, err
}

// StopExecution запрашивает остановку execution.
func (c *Client) StopExecution(id string, force bool) (*ExecutionResponse, error) {
	path := "/api/v1/executions/" + id + "/stop"
	if force {
		path += "?force=true"
	}
	var exec ExecutionResponse
	err := c.post(path, nil, &exec)
	return &exec, err
}

// ExecutionEvents возвращает журнал переходов execution.
func (c *Client) ExecutionEvents(id string) ([]TransitionEventResponse, error) {
	var events []TransitionEventResponse
	err := c.list("/api/v1/executions/"+id+"/events", nil, &events)
	return events, err
}

// AnalyzeExecution возвращает сводку длительностей фаз.
func (c *Client) AnalyzeExecution(id string) (*AnalysisResponse, error) {
	var analysis AnalysisResponse
	err := c.get("/api/v1/executions/"+id+"/analysis", &analysis)
	return &analysis, err
}

// ExecutionNodes возвращает телеметрию узлов execution.
func (c *Client) ExecutionNodes(id string) ([]NodeStatusResponse, error) {
	var nodes []NodeStatusResponse
	err := c.list("/api/v1/executions/"+id+"/nodes", nil, &nodes)
	return nodes, err
}

// NodeLogs возвращает хвост буфера логов узла.
func (c *Client) NodeLogs(id, node string, tail int) ([]string, error) {
	params := url.Values{}
	if tail > 0 {
		params.Set("tail", fmt.Sprintf("%d", tail))
	}

	var lines []string
	err := c.list("/api/v1/executions/"+id+"/nodes/"+node+"/logs", params, &lines)
	return lines, err
}

// StreamLogs пишет поток логов execution в w до обрыва соединения.
// intervalSec > 0 добавляет периодические snapshot-кадры телеметрии;
// сервер закрывает такой поток по завершении execution.
func (c *Client) StreamLogs(id string, intervalSec int, w io.Writer) error {
	path := "/api/v1/executions/" + id + "/logs/stream"
	if intervalSec > 0 {
		path += "?interval=" + strconv.Itoa(intervalSec)
	}
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

// --- Checkpoints ---

// ListCheckpoints возвращает checkpoints execution.
func (c *Client) ListCheckpoints(executionID string) ([]CheckpointResponse, error) {
	var cps []CheckpointResponse
	err := c.list("/api/v1/executions/"+executionID+"/checkpoints", nil, &cps)
	return cps, err
}

// CreateCheckpoint создаёт явный checkpoint.
func (c *Client) CreateCheckpoint(executionID string, req CreateCheckpointRequest) (*CheckpointResponse, error) {
	var cp CheckpointResponse
	err := c.post("/api/v1/executions/"+executionID+"/checkpoints", req, &cp)
	return &cp, err
}

// LatestCheckpoint возвращает последний верифицированный checkpoint.
func (c *Client) LatestCheckpoint(executionID string) (*CheckpointResponse, error) {
	var cp CheckpointResponse
	err := c.get("/api/v1/executions/"+executionID+"/checkpoints/latest", &cp)
	return &cp, err
}

// RestoreCheckpoint создаёт новый execution из checkpoint'а.
func (c *Client) RestoreCheckpoint(executionID string, seq int, replan bool) (*ExecutionResponse, error) {
	path := fmt.Sprintf("/api/v1/executions/%s/checkpoints/%d/restore", executionID, seq)
	var exec ExecutionResponse
	err := c.post(path, RestoreCheckpointRequest{Replan: replan}, &exec)
	return &exec, err
}

// RestoreLatestCheckpoint создаёт новый execution из последнего
// верифицированного checkpoint'а.
func (c *Client) RestoreLatestCheckpoint(executionID string, replan bool) (*ExecutionResponse, error) {
	path := fmt.Sprintf("/api/v1/executions/%s/restore", executionID)
	var exec ExecutionResponse
	err := c.post(path, RestoreCheckpointRequest{Replan: replan}, &exec)
	return &exec, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	// Пустой список сериализуется как null
	if len(lr.Data) == 0 || string(lr.Data) == "null" {
		return nil
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
