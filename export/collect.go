package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/cellscan/scan"
)

const (
	contentType     = "application/json"
	CollectEndpoint = "cellscan/v1/collect"
)

// CollectResponse is what the status server answers to a submitted summary.
type CollectResponse struct {
	Status    string `json:"status"`
	JobCount  int    `json:"jobCount"`
	CellCount int    `json:"cellCount"`
}

// Server submits the summary to a cellscan status server.
type Server struct {
	Server string
	Client *http.Client
}

func (s *Server) Name() string { return "server " + s.Server }

func (s *Server) Export(ctx context.Context, sum *scan.Summary) error {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("error marshalling summary to JSON: %s", err)
	}
	url := fmt.Sprintf("%s/%s", strings.TrimRight(s.Server, "/"), CollectEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error POSTing summary: %s", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading POST body: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server %s answered %s: %s", s.Server, resp.Status, strings.TrimSpace(string(respBody)))
	}

	cr := CollectResponse{}
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return fmt.Errorf("unable to parse server response: %s", err)
	}
	glog.Infof("submitted %d jobs and %d cells to server %s", cr.JobCount, cr.CellCount, s.Server)
	return nil
}
