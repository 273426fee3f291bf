package config

import (
	"net"
	"strconv"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StartNacosWatcher 读取一次并监听 nacos 上的配置，limits 段变化时回调 apply。
// nc.Addr 为空时什么都不做。
func StartNacosWatcher(nc NacosConfig, base Limits, apply func(Limits)) (config_client.IConfigClient, error) {
	if nc.Addr == "" {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(nc.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "nacos addr %q", nc.Addr)
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "nacos port %q", portStr)
	}

	clientConfig := *constant.NewClientConfig(
		constant.WithTimeoutMs(5000),
		constant.WithNamespaceId(nc.NamespaceID),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel("warn"),
		constant.WithCacheDir("nacos/cache"),
		constant.WithLogDir("nacos/log"),
	)
	configClient, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: []constant.ServerConfig{*constant.NewServerConfig(host, port)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create nacos config client")
	}

	onData := func(data string) {
		if data == "" {
			return
		}
		l, err := ParseLimits(data, base)
		if err != nil {
			logger.Warn("[nacos] ignore invalid limits", zap.Error(err))
			return
		}
		logger.Info("[nacos] limits updated", zap.Any("limits", l))
		apply(l)
	}

	// 第一次读取
	content, err := configClient.GetConfig(vo.ConfigParam{DataId: nc.DataID, Group: nc.Group})
	if err != nil {
		logger.Warn("[nacos] get config failed", zap.Error(err))
	} else {
		onData(content)
	}

	// 开始监听
	err = configClient.ListenConfig(vo.ConfigParam{
		DataId: nc.DataID,
		Group:  nc.Group,
		OnChange: func(namespace, group, dataId, data string) {
			onData(data)
		},
	})
	if err != nil {
		return configClient, errors.Wrap(err, "listen nacos config")
	}
	return configClient, nil
}
