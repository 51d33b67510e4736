package glb

import (
	"sync"

	"github.com/lunfardo314/tangle/api/client"
	"github.com/spf13/viper"
)

var displayEndpointOnce sync.Once

func GetClient() *client.APIClient {
	endpoint := viper.GetString("api.endpoint")
	Assertf(endpoint != "", "node API endpoint not specified")
	displayEndpointOnce.Do(func() {
		Verbosef("using API endpoint: %s", endpoint)
	})
	return client.New(endpoint)
}
