package client

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lunfardo314/tangle/api"
	"github.com/lunfardo314/tangle/ledger"
)

const apiDefaultClientTimeout = 7 * time.Second

type APIClient struct {
	c      http.Client
	prefix string
}

func New(serverURL string, timeout ...time.Duration) *APIClient {
	var to time.Duration
	if len(timeout) > 0 {
		to = timeout[0]
	} else {
		to = apiDefaultClientTimeout
	}
	return &APIClient{
		c:      http.Client{Timeout: to},
		prefix: strings.TrimSuffix(serverURL, "/"),
	}
}

func (c *APIClient) GetNodeInfo() (*api.NodeInfo, error) {
	var res api.NodeInfo
	if err := c.getJSON(api.PathGetInfo, &res, &res.Error); err != nil {
		return nil, fmt.Errorf("GetNodeInfo: %w", err)
	}
	return &res, nil
}

func (c *APIClient) GetVertex(id ledger.Hash) (*api.Vertex, error) {
	var res api.Vertex
	if err := c.getJSON(api.PathGetVertex+"/"+id.String(), &res, &res.Error); err != nil {
		return nil, fmt.Errorf("GetVertex: %w", err)
	}
	return &res, nil
}

// GetBalance returns balance of the address and the ledger index it was read at
func (c *APIClient) GetBalance(addr ledger.Address) (uint64, ledger.MilestoneIndex, error) {
	var res api.Balance
	if err := c.getJSON(api.PathGetBalance+"/"+addr.String(), &res, &res.Error); err != nil {
		return 0, 0, fmt.Errorf("GetBalance: %w", err)
	}
	return res.Balance, ledger.MilestoneIndex(res.LedgerIndex), nil
}

func (c *APIClient) GetMilestone(idx ledger.MilestoneIndex) (*api.Milestone, error) {
	var res api.Milestone
	if err := c.getJSON(fmt.Sprintf("%s/%d", api.PathGetMilestone, idx), &res, &res.Error); err != nil {
		return nil, fmt.Errorf("GetMilestone: %w", err)
	}
	return &res, nil
}

func (c *APIClient) GetTips() ([]ledger.Hash, error) {
	var res api.Tips
	if err := c.getJSON(api.PathGetTips, &res, &res.Error); err != nil {
		return nil, fmt.Errorf("GetTips: %w", err)
	}
	ret := make([]ledger.Hash, 0, len(res.Tips))
	for _, s := range res.Tips {
		h, err := ledger.HashFromHexString(s)
		if err != nil {
			return nil, fmt.Errorf("GetTips: wrong tip id from server: %w", err)
		}
		ret = append(ret, h)
	}
	return ret, nil
}

// SubmitTransaction waits until the node processes the transaction and returns its solidity status
func (c *APIClient) SubmitTransaction(txBytes []byte) (string, error) {
	resp, err := c.c.Post(c.prefix+api.PathSubmit, "text/plain", strings.NewReader(hex.EncodeToString(txBytes)))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var res api.Submitted
	if err = json.Unmarshal(body, &res); err != nil {
		return "", err
	}
	if res.Error.Error != "" {
		return "", fmt.Errorf("from server: %s", res.Error.Error)
	}
	return res.Status, nil
}

// GetDOT returns past cone of the vertex in Graphviz format
func (c *APIClient) GetDOT(id ledger.Hash, maxVertices int) ([]byte, error) {
	path := fmt.Sprintf("%s/%s?max=%d", api.PathGetDOT, id.String(), maxVertices)
	resp, err := c.c.Get(c.prefix + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var res api.Error
		if err = json.Unmarshal(body, &res); err == nil && res.Error != "" {
			return nil, fmt.Errorf("GetDOT: from server: %s", res.Error)
		}
		return nil, fmt.Errorf("GetDOT: status %s", resp.Status)
	}
	return body, nil
}

func (c *APIClient) getJSON(path string, target any, errPart *api.Error) error {
	body, err := c.getBody(path)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, target); err != nil {
		return err
	}
	if errPart.Error != "" {
		return fmt.Errorf("from server: %s", errPart.Error)
	}
	return nil
}

func (c *APIClient) getBody(path string) ([]byte, error) {
	url := c.prefix + path
	resp, err := c.c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}
