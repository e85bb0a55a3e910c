package realsense

import (
	"context"

	"github.com/pkg/errors"
)

// DoCommand exposes the device controls that have no place on the camera
// API: the feature surface, stream mode switches, and device diagnostics.
// The command name travels under "command"; arguments are flat keys on the
// same map. Numbers arrive as float64 after the protobuf round trip.
func (c *realsenseCamera) DoCommand(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	name, ok := req["command"].(string)
	if !ok {
		return nil, errors.New("command must be a string under key \"command\"")
	}

	switch name {
	case "set_feature":
		f, err := featureArg(req)
		if err != nil {
			return nil, err
		}
		value, err := floatArg(req, "value")
		if err != nil {
			return nil, err
		}
		return result(c.SetFeature(f, value))
	case "get_feature":
		f, err := featureArg(req)
		if err != nil {
			return nil, err
		}
		value, err := c.GetFeature(f)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"value": value}, nil
	case "set_mode":
		f, err := featureArg(req)
		if err != nil {
			return nil, err
		}
		modeName, ok := req["mode"].(string)
		if !ok {
			return nil, errors.New("set_mode wants a string \"mode\"")
		}
		mode, err := FeatureModeByName(modeName)
		if err != nil {
			return nil, err
		}
		return result(c.SetMode(f, mode))
	case "get_mode":
		f, err := featureArg(req)
		if err != nil {
			return nil, err
		}
		mode, err := c.GetMode(f)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"mode": mode.String()}, nil
	case "set_active":
		f, err := featureArg(req)
		if err != nil {
			return nil, err
		}
		on, ok := req["on"].(bool)
		if !ok {
			return nil, errors.New("set_active wants a bool \"on\"")
		}
		return result(c.SetActive(f, on))
	case "get_active":
		f, err := featureArg(req)
		if err != nil {
			return nil, err
		}
		on, err := c.GetActive(f)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"on": on}, nil
	case "one_push":
		f, err := featureArg(req)
		if err != nil {
			return nil, err
		}
		return result(c.SetOnePush(f))
	case "set_depth_resolution":
		w, h, err := resolutionArgs(req)
		if err != nil {
			return nil, err
		}
		return result(c.SetDepthResolution(w, h))
	case "set_rgb_resolution":
		w, h, err := resolutionArgs(req)
		if err != nil {
			return nil, err
		}
		return result(c.SetRgbResolution(w, h))
	case "get_fov":
		h, v, err := c.FieldOfView()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"horizontal_deg": h, "vertical_deg": v}, nil
	case "set_depth_accuracy":
		value, err := floatArg(req, "value")
		if err != nil {
			return nil, err
		}
		return result(c.SetDepthAccuracy(value))
	case "get_depth_accuracy":
		value, err := c.DepthAccuracy()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"value": value}, nil
	case "set_clip_planes":
		near, err := floatArg(req, "near")
		if err != nil {
			return nil, err
		}
		far, err := floatArg(req, "far")
		if err != nil {
			return nil, err
		}
		return result(c.SetDepthClipPlanes(near, far))
	case "get_clip_planes":
		near, far, err := c.DepthClipPlanes()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"near": near, "far": far}, nil
	case "device_info":
		info, err := c.DeviceDescription()
		if err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, len(info))
		for k, v := range info {
			out[k] = v
		}
		return out, nil
	case "sensor_status":
		return map[string]interface{}{"status": c.Status().String()}, nil
	case "last_error":
		msg, at := c.LastError()
		out := map[string]interface{}{"error": msg}
		if !at.IsZero() {
			out["at"] = at.Format("2006-01-02T15:04:05.000Z07:00")
		}
		return out, nil
	default:
		return nil, errors.Errorf("unknown command %q", name)
	}
}

func result(err error) (map[string]interface{}, error) {
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ok": true}, nil
}

func featureArg(req map[string]interface{}) (Feature, error) {
	name, ok := req["feature"].(string)
	if !ok {
		return 0, errors.New("command wants a string \"feature\"")
	}
	return FeatureByName(name)
}

func floatArg(req map[string]interface{}, key string) (float64, error) {
	switch v := req[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, errors.Errorf("command wants a number %q", key)
	}
}

func resolutionArgs(req map[string]interface{}) (int, int, error) {
	w, err := floatArg(req, "width_px")
	if err != nil {
		return 0, 0, err
	}
	h, err := floatArg(req, "height_px")
	if err != nil {
		return 0, 0, err
	}
	return int(w), int(h), nil
}
