/*
Package server provides the web interface to rendered datasets.

Routes:

	GET /                     index.html of the web client
	GET /js/:filename         scripts of the web client
	GET /css/:filename        stylesheets of the web client
	GET /datasets             JSON list of datasets
	GET /image/:dataset/:x/:y/:z/:upx/:upy/:upz/:vx/:vy/:vz/:lowquality/:options?

The optional image options are a comma-separated list of key/value pairs:

	colormap,<viridis|magma>   colormap of the selected time step's volume
	timestep,<n>               render time step n
	filename,<name>            render the time step read from the named file
	onlysave,<name>            write <savedir>/<name>.png instead of returning it
	hq,true                    8192 x 8192 images with 8 samples per pixel

Camera pose, image size and colormap changes persist for later requests of the
same dataset.
*/
package server
