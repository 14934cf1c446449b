/*
Volrender serves on-demand rendered images of volumetric scientific datasets over
HTTP.  A client supplies a dataset name, camera pose and rendering options in the
URL and gets back a PNG.

	volrender [options] <config dir> <port | socket path>

Datasets

Each file in the config dir with a .json, .yaml or .yml extension describes one
dataset.  The dataset name is the file name without its extension.

	{
		"filename": "volumes/t_*.raw",
		"variable": "density",
		"dimensions": [256, 256, 256],
		"colorMap": "viridis",
		"opacityMap": "ramp",
		"opacityAttenuation": 0.5,
		"backgroundColor": [0, 0, 0],
		"imageSize": [1024, 1024],
		"cameraPosition": [0, 0, 5]
	}

A filename with glob characters makes a time series with one step per matching
file, in sorted order.  Volume data is raw little-endian float32 values, x fastest,
optionally compressed (.gz, .zst, .sz), or a NetCDF classic file (.nc) in which
case "variable" names the variable to read.  Relative paths are relative to the
descriptor.

Server configuration

An optional TOML file given with -config sets server, render and logging options:

	[server]
	webclient = "/path/to/client"   # index.html plus js/ and css/
	savedir = "data"                # where "onlysave" images are written
	max_connections = 0             # 0 means unlimited
	shutdown_timeout = 5            # seconds
	cors_domains = ["https://viewer.example.org"]

	[render]
	max_memory_gb = 30              # resident data per time series
	memory_mapping = true           # map uncompressed raw time steps
	image_cache_mb = 0              # cache of rendered PNGs, 0 disables

	[logging]
	logfile = "/var/log/volrender.log"
	max_log_size = 100              # MB
	max_log_age = 30                # days

Requests

	GET /image/:dataset/:x/:y/:z/:upx/:upy/:upz/:vx/:vy/:vz/:lowquality/:options?

The camera is placed at integer position (x,y,z) with the given up vector and view
direction.  A lowquality of 1 renders 64 x 64 images; other positive values bound
the image size, and 0 renders at the dataset's full size.  See package server for
the options.
*/
package main
